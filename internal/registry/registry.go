// Package registry owns per-user delivery schedules.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/store"
)

// Registry mutates schedules through the store. Every method returns a copy
// of the resulting schedule.
type Registry struct {
	repo      store.Repo
	defaultTZ string
}

// New creates a registry; defaultTZ seeds new schedules.
func New(repo store.Repo, defaultTZ string) *Registry {
	return &Registry{repo: repo, defaultTZ: defaultTZ}
}

// DefaultTZ is the zone new schedules start with.
func (r *Registry) DefaultTZ() string { return r.defaultTZ }

// Ensure returns uid's schedule, creating or backfilling it first.
func (r *Registry) Ensure(ctx context.Context, uid int64) (*domain.Schedule, error) {
	return r.mutate(ctx, uid, func(*domain.Schedule) (bool, error) { return false, nil })
}

// SetKindTime sets the delivery time of kind from "HH:MM" or "HH.MM".
// The kind and the schedule are switched on and the daily token is reset.
func (r *Registry) SetKindTime(ctx context.Context, uid int64, kind domain.Kind, raw string) (*domain.Schedule, error) {
	if !kind.Valid() {
		return nil, domain.ErrUnknownKind
	}
	at, err := domain.ParseTime(raw)
	if err != nil {
		return nil, err
	}
	return r.mutate(ctx, uid, func(sch *domain.Schedule) (bool, error) {
		sch.Entry(kind).SetTime(at)
		sch.Enabled = true
		return true, nil
	})
}

// ClearKind unsets the time of kind and switches it off.
func (r *Registry) ClearKind(ctx context.Context, uid int64, kind domain.Kind) (*domain.Schedule, error) {
	if !kind.Valid() {
		return nil, domain.ErrUnknownKind
	}
	return r.mutate(ctx, uid, func(sch *domain.Schedule) (bool, error) {
		sch.Entry(kind).Clear()
		return true, nil
	})
}

// SetKindEnabled toggles one kind. Enabling a kind without a time fails with
// domain.ErrNothingToEnable and changes nothing.
func (r *Registry) SetKindEnabled(ctx context.Context, uid int64, kind domain.Kind, on bool) (*domain.Schedule, error) {
	if !kind.Valid() {
		return nil, domain.ErrUnknownKind
	}
	return r.mutate(ctx, uid, func(sch *domain.Schedule) (bool, error) {
		e := sch.Entry(kind)
		if on && !domain.ValidTime(e.AtTime) {
			return false, domain.ErrNothingToEnable
		}
		if e.Enabled == on {
			return false, nil
		}
		e.Enabled = on
		return true, nil
	})
}

// SetGlobalEnabled toggles all deliveries of uid at once.
func (r *Registry) SetGlobalEnabled(ctx context.Context, uid int64, on bool) (*domain.Schedule, error) {
	return r.mutate(ctx, uid, func(sch *domain.Schedule) (bool, error) {
		if sch.Enabled == on {
			return false, nil
		}
		sch.Enabled = on
		return true, nil
	})
}

// SetTimezone validates and stores an IANA zone name.
func (r *Registry) SetTimezone(ctx context.Context, uid int64, name string) (*domain.Schedule, error) {
	tz, err := domain.ValidateTZ(name)
	if err != nil {
		return nil, err
	}
	return r.mutate(ctx, uid, func(sch *domain.Schedule) (bool, error) {
		if sch.TZ == tz {
			return false, nil
		}
		sch.TZ = tz
		return true, nil
	})
}

func (r *Registry) mutate(ctx context.Context, uid int64, fn func(*domain.Schedule) (bool, error)) (*domain.Schedule, error) {
	var out *domain.Schedule
	err := store.Update(ctx, r.repo, func(st *domain.State) (bool, error) {
		sch, ensured := domain.EnsureSchedule(st, uid, r.defaultTZ)
		changed, err := fn(sch)
		if err != nil {
			return false, err
		}
		out = sch.Clone()
		return ensured || changed, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Render formats a schedule for the show-schedule reply.
func Render(sch *domain.Schedule, defaultTZ string) string {
	tz := sch.TZ
	if tz == "" {
		tz = defaultTZ
	}
	var b strings.Builder
	b.WriteString("Графики рассылок\n")
	fmt.Fprintf(&b, "- общий статус: %s\n", onOff(sch.Enabled))
	fmt.Fprintf(&b, "- часовой пояс: %s\n", tz)
	for _, k := range domain.Kinds {
		at, active := "не задано", false
		if e := sch.Entry(k); e != nil {
			if e.AtTime != "" {
				at = e.AtTime
			}
			active = e.Active()
		}
		fmt.Fprintf(&b, "- %s: %s, время: %s\n", k.Label(), onOff(active), at)
	}
	b.WriteString("\nКоманды:\n")
	b.WriteString("/schedule — показать график\n")
	b.WriteString("/schedule_add — выбрать модуль и задать время\n")
	b.WriteString("/schedule_del — убрать время для модуля\n")
	b.WriteString("/schedule_off [1-4] — выключить всё или конкретный модуль\n")
	b.WriteString("/schedule_on [1-4] — включить всё или модуль\n")
	b.WriteString("/schedule_tz Europe/Moscow — установить часовой пояс")
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "включён"
	}
	return "выключен"
}
