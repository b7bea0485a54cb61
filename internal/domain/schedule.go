package domain

import (
	"strings"
	"time"
)

// Kind identifies one of the independent content feeds.
type Kind string

const (
	KindBase       Kind = "base"
	KindHolidays   Kind = "holidays"
	KindFilmsMonth Kind = "films"
	KindFilmsDay   Kind = "films_day"
)

// Kinds lists every feed in display and evaluation order.
var Kinds = []Kind{KindBase, KindHolidays, KindFilmsMonth, KindFilmsDay}

var kindLabels = map[Kind]string{
	KindBase:       "База дня",
	KindHolidays:   "Праздники дня",
	KindFilmsMonth: "Кинопремьеры месяца",
	KindFilmsDay:   "Премьеры дня",
}

var kindAliases = map[Kind][]string{
	KindBase:       {"1", "база", "base", "quotes", "цитаты"},
	KindHolidays:   {"2", "празд", "праздники", "holidays", "holiday"},
	KindFilmsMonth: {"3", "films", "film", "кино", "фильмы", "премьеры", "кинопремьеры"},
	KindFilmsDay:   {"4", "films_day", "film_day", "премьеры дня", "кино дня", "фильмы дня"},
}

// Label is the human readable feed name.
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is one of the known feeds.
func (k Kind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// ParseKind maps a user token (number, alias or identifier) to a Kind.
func ParseKind(s string) (Kind, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return "", ErrUnknownKind
	}
	for _, k := range Kinds {
		for _, alias := range kindAliases[k] {
			if t == alias {
				return k, nil
			}
		}
	}
	return "", ErrUnknownKind
}

// KindEntry is the per-feed delivery setting of a user.
type KindEntry struct {
	Enabled bool   `json:"enabled"`
	AtTime  string `json:"at_time"`
	// LastSent holds a single {at_time: date} pair: the idempotence token.
	LastSent map[string]string `json:"last_sent"`
}

func newKindEntry() *KindEntry {
	return &KindEntry{LastSent: map[string]string{}}
}

// Active reports whether the entry is switched on with a usable time.
func (k *KindEntry) Active() bool {
	return k.Enabled && ValidTime(k.AtTime)
}

// SetTime stores a normalized time, enables the feed and resets the token,
// so a time later today can still fire.
func (k *KindEntry) SetTime(at string) {
	k.AtTime = at
	k.Enabled = true
	k.LastSent = map[string]string{}
}

// Clear unsets the time and disables the feed.
func (k *KindEntry) Clear() {
	k.AtTime = ""
	k.Enabled = false
	k.LastSent = map[string]string{}
}

// Due reports whether the entry should fire at local hhmm on day.
func (k *KindEntry) Due(hhmm, day string) bool {
	if !k.Active() || hhmm != k.AtTime {
		return false
	}
	return k.LastSent[k.AtTime] != day
}

// MarkSent replaces the token with {at_time: day}.
func (k *KindEntry) MarkSent(day string) {
	k.LastSent = map[string]string{k.AtTime: day}
}

// Eligible applies per-kind calendar restrictions to a local time.
func Eligible(kind Kind, local time.Time) bool {
	if kind == KindFilmsMonth {
		return local.Day() == 1
	}
	return true
}

// LegacySchedule is the flat single-feed shape written by older versions.
type LegacySchedule struct {
	Kind     string
	AtTime   string
	LastSent map[string]string
	Mode     string
	EveryMin int
}

// Schedule is a user's delivery profile.
type Schedule struct {
	Enabled      bool                `json:"enabled"`
	TZ           string              `json:"tz"`
	SpecialFlags map[string]int      `json:"special_flags"`
	Kinds        map[Kind]*KindEntry `json:"kinds"`

	// Legacy is non-nil only for records imported in the old flat shape.
	Legacy *LegacySchedule `json:"-"`
}

// Entry returns the entry for k; it is always present after EnsureSchedule.
func (s *Schedule) Entry(k Kind) *KindEntry {
	return s.Kinds[k]
}

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{
		Enabled:      s.Enabled,
		TZ:           s.TZ,
		SpecialFlags: make(map[string]int, len(s.SpecialFlags)),
		Kinds:        make(map[Kind]*KindEntry, len(s.Kinds)),
	}
	for k, v := range s.SpecialFlags {
		c.SpecialFlags[k] = v
	}
	for k, e := range s.Kinds {
		ce := &KindEntry{Enabled: e.Enabled, AtTime: e.AtTime, LastSent: make(map[string]string, len(e.LastSent))}
		for at, day := range e.LastSent {
			ce.LastSent[at] = day
		}
		c.Kinds[k] = ce
	}
	if s.Legacy != nil {
		l := *s.Legacy
		c.Legacy = &l
	}
	return c
}

// EnsureSchedule returns uid's schedule, creating it with defaults and
// backfilling missing parts. A legacy flat shape is folded into the kind map
// exactly once. changed reports whether anything was written.
func EnsureSchedule(st *State, uid int64, defaultTZ string) (sch *Schedule, changed bool) {
	sch, ok := st.Schedules[uid]
	if !ok || sch == nil {
		sch = &Schedule{Enabled: true}
		st.Schedules[uid] = sch
		changed = true
	}
	if sch.TZ == "" {
		sch.TZ = defaultTZ
		changed = true
	}
	if sch.SpecialFlags == nil {
		sch.SpecialFlags = map[string]int{}
		changed = true
	}
	if sch.Kinds == nil {
		sch.Kinds = make(map[Kind]*KindEntry, len(Kinds))
		changed = true
	}
	for _, k := range Kinds {
		e := sch.Kinds[k]
		if e == nil {
			sch.Kinds[k] = newKindEntry()
			changed = true
			continue
		}
		if e.LastSent == nil {
			e.LastSent = map[string]string{}
			changed = true
		}
	}
	if sch.Legacy != nil {
		foldLegacy(sch)
		changed = true
	}
	return sch, changed
}

func foldLegacy(sch *Schedule) {
	legacy := sch.Legacy
	sch.Legacy = nil
	k := Kind(legacy.Kind)
	if k != KindBase && k != KindHolidays {
		return
	}
	e := sch.Kinds[k]
	e.AtTime = legacy.AtTime
	if legacy.LastSent != nil {
		e.LastSent = make(map[string]string, len(legacy.LastSent))
		for at, day := range legacy.LastSent {
			e.LastSent[at] = day
		}
	}
	e.Enabled = sch.Enabled
}

// Occasion names a once-a-year broadcast tracked in special_flags.
type Occasion string

const (
	OccasionNewYear  Occasion = "new_year"
	OccasionBirthday Occasion = "birthday"
)

const birthdayGreetingTime = "10:00"

// SpecialDue reports whether o has not been sent yet in year.
func (s *Schedule) SpecialDue(o Occasion, year int) bool {
	return s.SpecialFlags[string(o)] != year
}

// MarkSpecial records that o was sent in year.
func (s *Schedule) MarkSpecial(o Occasion, year int) {
	if s.SpecialFlags == nil {
		s.SpecialFlags = map[string]int{}
	}
	s.SpecialFlags[string(o)] = year
}

// NewYearMoment reports local midnight of January 1st.
func NewYearMoment(local time.Time) bool {
	return local.Month() == time.January && local.Day() == 1 && local.Format("15:04") == "00:00"
}

// BirthdayMoment reports the greeting minute on the birthday. Feb 29 birthdays
// are greeted on Feb 28 in non-leap years.
func BirthdayMoment(birthday *time.Time, local time.Time) bool {
	if birthday == nil || local.Format("15:04") != birthdayGreetingTime {
		return false
	}
	month, day := birthday.Month(), birthday.Day()
	if month == time.February && day == 29 && !isLeap(local.Year()) {
		day = 28
	}
	return local.Month() == month && local.Day() == day
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
