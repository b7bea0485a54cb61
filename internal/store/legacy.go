package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// legacyFile is the users.json layout of the file-backed versions.
// allowed and pending were either id lists or id-keyed maps.
type legacyFile struct {
	Admins    []int64                         `json:"admins"`
	Allowed   json.RawMessage                 `json:"allowed"`
	Pending   json.RawMessage                 `json:"pending"`
	Schedules map[string]legacyScheduleRecord `json:"schedules"`
}

type legacyMeta struct {
	Username    *string `json:"username"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	AddedAt     string  `json:"added_at"`
	RequestedAt string  `json:"requested_at"`
	Birthday    string  `json:"birthday"`
}

type legacyKind struct {
	Enabled  bool              `json:"enabled"`
	AtTime   string            `json:"at_time"`
	LastSent map[string]string `json:"last_sent"`
}

type legacyScheduleRecord struct {
	Enabled      *bool                 `json:"enabled"`
	TZ           string                `json:"tz"`
	SpecialFlags map[string]int        `json:"special_flags"`
	Kinds        map[string]legacyKind `json:"kinds"`

	// flat single-feed shape
	Kind     *string           `json:"kind"`
	AtTime   string            `json:"at_time"`
	LastSent map[string]string `json:"last_sent"`
	Mode     string            `json:"mode"`
	EveryMin int               `json:"every_min"`
}

// ParseLegacyJSON converts a users.json document into a State. Flat schedules
// are carried as domain.LegacySchedule for EnsureSchedule to fold.
func ParseLegacyJSON(raw []byte, now time.Time) (*domain.State, error) {
	var f legacyFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode legacy json: %w", err)
	}

	st := domain.NewState()
	for _, id := range f.Admins {
		st.Admins[id] = struct{}{}
	}

	allowed, err := decodeLegacyUsers(f.Allowed)
	if err != nil {
		return nil, fmt.Errorf("allowed: %w", err)
	}
	pending, err := decodeLegacyUsers(f.Pending)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}

	for id, m := range pending {
		u := legacyUser(id, m, domain.StatusPending)
		u.RequestedAt = parseStamp(m.RequestedAt, now)
		st.Users[id] = u
	}
	for id, m := range allowed {
		u := legacyUser(id, m, domain.StatusAllowed)
		u.AddedAt = parseStamp(m.AddedAt, now)
		st.Users[id] = u
	}

	for key, rec := range f.Schedules {
		uid, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		st.Schedules[uid] = rec.toDomain()
	}
	return st, nil
}

func decodeLegacyUsers(raw json.RawMessage) (map[int64]legacyMeta, error) {
	out := map[int64]legacyMeta{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}

	var list []int64
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, id := range list {
			out[id] = legacyMeta{}
		}
		return out, nil
	}

	var byID map[string]legacyMeta
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, err
	}
	for key, m := range byID {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = m
	}
	return out, nil
}

func legacyUser(id int64, m legacyMeta, status domain.Status) *domain.User {
	u := &domain.User{Profile: domain.Profile{ID: id}, Status: status}
	if m.Username != nil {
		u.Username = *m.Username
	}
	if m.FirstName != nil {
		u.FirstName = *m.FirstName
	}
	if m.LastName != nil {
		u.LastName = *m.LastName
	}
	if m.Birthday != "" {
		if d, err := time.Parse(domain.DateLayout, m.Birthday); err == nil {
			u.Birthday = &d
		}
	}
	return u
}

// parseStamp reads ISO timestamps; missing or broken ones become now.
func parseStamp(s string, now time.Time) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t = now
	}
	t = t.UTC()
	return &t
}

func (rec legacyScheduleRecord) toDomain() *domain.Schedule {
	sch := &domain.Schedule{
		Enabled:      true,
		TZ:           rec.TZ,
		SpecialFlags: rec.SpecialFlags,
		Kinds:        map[domain.Kind]*domain.KindEntry{},
	}
	if rec.Enabled != nil {
		sch.Enabled = *rec.Enabled
	}
	for name, k := range rec.Kinds {
		sch.Kinds[domain.Kind(name)] = &domain.KindEntry{Enabled: k.Enabled, AtTime: k.AtTime, LastSent: k.LastSent}
	}
	if rec.Kind != nil {
		sch.Legacy = &domain.LegacySchedule{
			Kind:     *rec.Kind,
			AtTime:   rec.AtTime,
			LastSent: rec.LastSent,
			Mode:     rec.Mode,
			EveryMin: rec.EveryMin,
		}
	}
	return sch
}

// ImportLegacy seeds an empty repository from a users.json file.
// It reports whether anything was imported; a missing file is not an error.
func ImportLegacy(ctx context.Context, r *SQLRepo, path, defaultTZ string, now time.Time) (bool, error) {
	if path == "" {
		return false, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &domain.StorageError{Op: "import", Err: err}
	}

	empty, err := r.Empty(ctx)
	if err != nil || !empty {
		return false, err
	}

	st, err := ParseLegacyJSON(raw, now)
	if err != nil {
		return false, &domain.StorageError{Op: "import", Err: err}
	}
	for uid := range st.Schedules {
		domain.EnsureSchedule(st, uid, defaultTZ)
	}
	if err := r.Save(ctx, st); err != nil {
		return false, err
	}
	return true, nil
}
