package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

type userRow struct {
	UserID      int64          `db:"user_id"`
	Username    string         `db:"username"`
	FirstName   string         `db:"first_name"`
	LastName    string         `db:"last_name"`
	Status      string         `db:"status"`
	AddedAt     sql.NullInt64  `db:"added_at"`
	RequestedAt sql.NullInt64  `db:"requested_at"`
	Birthday    sql.NullString `db:"birthday"`
}

type scheduleRow struct {
	UserID       int64  `db:"user_id"`
	Enabled      bool   `db:"enabled"`
	TZ           string `db:"tz"`
	SpecialFlags string `db:"special_flags"`
}

type kindRow struct {
	UserID   int64  `db:"user_id"`
	Kind     string `db:"kind"`
	Enabled  bool   `db:"enabled"`
	AtTime   string `db:"at_time"`
	LastSent string `db:"last_sent"`
}

func toNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullInt64(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

func toNullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(domain.DateLayout), Valid: true}
}

func fromNullDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := time.Parse(domain.DateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func newUserRow(u *domain.User) userRow {
	return userRow{
		UserID:      u.ID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Status:      string(u.Status),
		AddedAt:     toNullInt64(u.AddedAt),
		RequestedAt: toNullInt64(u.RequestedAt),
		Birthday:    toNullDate(u.Birthday),
	}
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		Profile: domain.Profile{
			ID:        r.UserID,
			Username:  r.Username,
			FirstName: r.FirstName,
			LastName:  r.LastName,
		},
		Status:      domain.Status(r.Status),
		AddedAt:     fromNullInt64(r.AddedAt),
		RequestedAt: fromNullInt64(r.RequestedAt),
		Birthday:    fromNullDate(r.Birthday),
	}
}

func newScheduleRow(uid int64, s *domain.Schedule) (scheduleRow, error) {
	flags := s.SpecialFlags
	if flags == nil {
		flags = map[string]int{}
	}
	raw, err := json.Marshal(flags)
	if err != nil {
		return scheduleRow{}, err
	}
	return scheduleRow{UserID: uid, Enabled: s.Enabled, TZ: s.TZ, SpecialFlags: string(raw)}, nil
}

func newKindRow(uid int64, k domain.Kind, e *domain.KindEntry) (kindRow, error) {
	last := e.LastSent
	if last == nil {
		last = map[string]string{}
	}
	raw, err := json.Marshal(last)
	if err != nil {
		return kindRow{}, err
	}
	return kindRow{UserID: uid, Kind: string(k), Enabled: e.Enabled, AtTime: e.AtTime, LastSent: string(raw)}, nil
}

// decodeJSON tolerates empty or broken payloads the way older versions wrote them.
func decodeJSON[T any](raw string, dst *T) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), dst)
}
