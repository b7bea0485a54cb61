package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

func init() {
	// sqlx only knows "sqlite3" out of the box.
	sqlx.BindDriver(DialectSQLite, sqlx.QUESTION)
}

// SQLRepo implements Repo over sqlx for both supported dialects.
type SQLRepo struct {
	db      *sqlx.DB
	dialect string
	mu      sync.Mutex
}

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	db, err := sqlx.Open(DialectSQLite, path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("apply pragmas: %w", err)}
	}
	return finishOpen(ctx, db, DialectSQLite)
}

// OpenPostgres connects to dsn and runs migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepo, error) {
	db, err := sqlx.ConnectContext(ctx, DialectPostgres, dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(5)
	return finishOpen(ctx, db, DialectPostgres)
}

func finishOpen(ctx context.Context, db *sqlx.DB, dialect string) (*SQLRepo, error) {
	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("migrations: %w", err)}
	}
	return &SQLRepo{db: db, dialect: dialect}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Dialect reports the backend in use.
func (r *SQLRepo) Dialect() string { return r.dialect }

// Close releases the underlying database resources.
func (r *SQLRepo) Close() error {
	return r.db.Close()
}

// Ping checks connectivity.
func (r *SQLRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &domain.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Load reads the full snapshot.
func (r *SQLRepo) Load(ctx context.Context) (*domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "load", Err: err}
	}
	return st, nil
}

func (r *SQLRepo) load(ctx context.Context) (*domain.State, error) {
	st := domain.NewState()

	var admins []int64
	if err := r.db.SelectContext(ctx, &admins, `SELECT user_id FROM admins`); err != nil {
		return nil, fmt.Errorf("admins: %w", err)
	}
	for _, id := range admins {
		st.Admins[id] = struct{}{}
	}

	var users []userRow
	if err := r.db.SelectContext(ctx, &users, `
		SELECT user_id, username, first_name, last_name, status, added_at, requested_at, birthday
		FROM users`); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	for _, u := range users {
		st.Users[u.UserID] = u.toDomain()
	}

	var schedules []scheduleRow
	if err := r.db.SelectContext(ctx, &schedules, `
		SELECT user_id, enabled, tz, special_flags FROM schedules`); err != nil {
		return nil, fmt.Errorf("schedules: %w", err)
	}
	for _, s := range schedules {
		sch := &domain.Schedule{
			Enabled:      s.Enabled,
			TZ:           s.TZ,
			SpecialFlags: map[string]int{},
			Kinds:        map[domain.Kind]*domain.KindEntry{},
		}
		decodeJSON(s.SpecialFlags, &sch.SpecialFlags)
		st.Schedules[s.UserID] = sch
	}

	var kinds []kindRow
	if err := r.db.SelectContext(ctx, &kinds, `
		SELECT user_id, kind, enabled, at_time, last_sent FROM schedule_kinds`); err != nil {
		return nil, fmt.Errorf("schedule kinds: %w", err)
	}
	for _, k := range kinds {
		sch, ok := st.Schedules[k.UserID]
		if !ok {
			continue
		}
		e := &domain.KindEntry{Enabled: k.Enabled, AtTime: k.AtTime, LastSent: map[string]string{}}
		decodeJSON(k.LastSent, &e.LastSent)
		sch.Kinds[domain.Kind(k.Kind)] = e
	}
	return st, nil
}

// Save replaces the stored snapshot with st inside one transaction.
func (r *SQLRepo) Save(ctx context.Context, st *domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.save(ctx, st); err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	return nil
}

func (r *SQLRepo) save(ctx context.Context, st *domain.State) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"schedule_kinds", "schedules", "users", "admins"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, id := range st.AdminIDs() {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO admins (user_id) VALUES (?)`), id); err != nil {
			return fmt.Errorf("insert admin %d: %w", id, err)
		}
	}

	for _, uid := range sortedKeys(st.Users) {
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO users (user_id, username, first_name, last_name, status, added_at, requested_at, birthday)
			VALUES (:user_id, :username, :first_name, :last_name, :status, :added_at, :requested_at, :birthday)`,
			newUserRow(st.Users[uid])); err != nil {
			return fmt.Errorf("insert user %d: %w", uid, err)
		}
	}

	for _, uid := range sortedKeys(st.Schedules) {
		sch := st.Schedules[uid]
		row, err := newScheduleRow(uid, sch)
		if err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO schedules (user_id, enabled, tz, special_flags)
			VALUES (:user_id, :enabled, :tz, :special_flags)`, row); err != nil {
			return fmt.Errorf("insert schedule %d: %w", uid, err)
		}
		for _, k := range domain.Kinds {
			e := sch.Kinds[k]
			if e == nil {
				continue
			}
			kr, err := newKindRow(uid, k, e)
			if err != nil {
				return err
			}
			if _, err = tx.NamedExecContext(ctx, `
				INSERT INTO schedule_kinds (user_id, kind, enabled, at_time, last_sent)
				VALUES (:user_id, :kind, :enabled, :at_time, :last_sent)`, kr); err != nil {
				return fmt.Errorf("insert kind %d/%s: %w", uid, k, err)
			}
		}
	}

	return tx.Commit()
}

// Empty reports whether nothing has been stored yet.
func (r *SQLRepo) Empty(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	if err := r.db.GetContext(ctx, &n, `
		SELECT (SELECT COUNT(*) FROM admins) + (SELECT COUNT(*) FROM users) + (SELECT COUNT(*) FROM schedules)`); err != nil {
		return false, &domain.StorageError{Op: "count", Err: err}
	}
	return n == 0, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
