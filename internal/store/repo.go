package store

import (
	"context"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// Repo persists the whole bot state as one snapshot.
// Load and Save are serialized; Save replaces everything atomically.
type Repo interface {
	Load(ctx context.Context) (*domain.State, error)
	Save(ctx context.Context, st *domain.State) error
	Ping(ctx context.Context) error
	Close() error
}

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver string // sqlite|postgres
	Path   string // sqlite file
	DSN    string // postgres connection string
}

// Open returns a migrated repository for the configured driver.
func Open(ctx context.Context, opt Options) (*SQLRepo, error) {
	switch opt.Driver {
	case "", DialectSQLite:
		return OpenSQLite(ctx, opt.Path)
	case DialectPostgres:
		return OpenPostgres(ctx, opt.DSN)
	default:
		return nil, &domain.StorageError{Op: "open", Err: errUnknownDriver(opt.Driver)}
	}
}

type errUnknownDriver string

func (e errUnknownDriver) Error() string { return "unknown db driver " + string(e) }

// Update loads the snapshot, applies fn and saves it when fn reports a change.
// The store lock is not held between Load and Save.
func Update(ctx context.Context, r Repo, fn func(st *domain.State) (changed bool, err error)) error {
	st, err := r.Load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(st)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return r.Save(ctx, st)
}
