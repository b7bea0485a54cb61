// Package scheduler polls the schedule snapshot and fires due deliveries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/store"
)

const (
	DefaultInterval = 30 * time.Second
	MinInterval     = 10 * time.Second
)

// Dispatcher delivers feeds and greetings. A nil error means the slot is done.
type Dispatcher interface {
	Dispatch(ctx context.Context, uid int64, kind domain.Kind, now time.Time) error
	Greet(ctx context.Context, uid int64, o domain.Occasion, p domain.Profile) error
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Repo       store.Repo
	Dispatcher Dispatcher
	Clock      clockwork.Clock
	Log        *zap.Logger
	Metrics    *Metrics
	Interval   time.Duration
	DefaultTZ  string
}

// Scheduler periodically loads the snapshot and dispatches due notifications.
type Scheduler struct {
	repo      store.Repo
	disp      Dispatcher
	clock     clockwork.Clock
	log       *zap.Logger
	metrics   *Metrics
	interval  time.Duration
	defaultTZ string
}

// TickReport summarizes one scheduling cycle.
type TickReport struct {
	Users   int // users evaluated
	Fired   int // feed deliveries marked sent
	Greeted int // yearly greetings marked sent
	Failed  int
	Saved   bool
	SaveErr error
}

// New creates a Scheduler. Intervals under MinInterval are raised to it.
func New(d Deps) *Scheduler {
	interval := d.Interval
	switch {
	case interval == 0:
		interval = DefaultInterval
	case interval < MinInterval:
		interval = MinInterval
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	return &Scheduler{
		repo:      d.Repo,
		disp:      d.Dispatcher,
		clock:     d.Clock,
		log:       d.Log,
		metrics:   d.Metrics,
		interval:  interval,
		defaultTZ: d.DefaultTZ,
	}
}

// Interval is the effective poll interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Metrics exposes the scheduler counters.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling cycle: load once, fire what is due, save if dirty.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	var report TickReport
	started := s.clock.Now()
	log := s.log.With(zap.String("tick_id", uuid.NewString()))
	defer func() {
		s.metrics.recordTick(started, s.clock.Since(started), report)
	}()

	st, err := s.repo.Load(ctx)
	if err != nil {
		log.Error("load snapshot failed", zap.Error(err))
		report.Failed++
		return report
	}

	dirty := false
	for _, uid := range st.AdmittedIDs() {
		if ctx.Err() != nil {
			break
		}
		// Admitted users without a schedule row get the default one.
		if st.Schedules[uid] == nil {
			dirty = true
		}
		sch, _ := domain.EnsureSchedule(st, uid, s.defaultTZ)
		if !sch.Enabled {
			continue
		}
		report.Users++
		// Judged by the clock when reached, not when the tick started.
		if s.evaluate(ctx, log, st, uid, sch, s.clock.Now(), &report) {
			dirty = true
		}
	}

	if !dirty {
		return report
	}
	if err := s.repo.Save(ctx, st); err != nil {
		log.Error("save snapshot failed", zap.Error(err))
		report.SaveErr = err
		return report
	}
	report.Saved = true
	log.Debug("tick saved", zap.Int("fired", report.Fired), zap.Int("greeted", report.Greeted))
	return report
}

// evaluate handles one user and reports whether the schedule changed.
func (s *Scheduler) evaluate(ctx context.Context, log *zap.Logger, st *domain.State, uid int64, sch *domain.Schedule, now time.Time, report *TickReport) (dirty bool) {
	tz := sch.TZ
	if tz == "" {
		tz = s.defaultTZ
	}
	local := now.In(domain.ResolveLocation(tz))
	hhmm, today := domain.LocalClock(local)
	log = log.With(zap.Int64("uid", uid), zap.String("local", hhmm), zap.String("date", today))

	for _, kind := range domain.Kinds {
		entry := sch.Entry(kind)
		if entry == nil || !entry.Due(hhmm, today) || !domain.Eligible(kind, local) {
			continue
		}
		err := s.guard(func() error { return s.disp.Dispatch(ctx, uid, kind, local) })
		if err != nil {
			var fe *domain.ContentFetchError
			if errors.As(err, &fe) {
				log.Warn("content unavailable, slot left open", zap.String("kind", string(kind)), zap.Error(err))
			} else {
				log.Warn("dispatch failed", zap.String("kind", string(kind)), zap.Error(err))
			}
			report.Failed++
			continue
		}
		entry.MarkSent(today)
		report.Fired++
		dirty = true
		log.Info("delivered", zap.String("kind", string(kind)), zap.String("at_time", entry.AtTime))
	}

	profile := domain.Profile{ID: uid}
	var birthday *time.Time
	if u, ok := st.Users[uid]; ok {
		profile = u.Profile
		birthday = u.Birthday
	}
	specials := []struct {
		occasion domain.Occasion
		now      bool
	}{
		{domain.OccasionNewYear, domain.NewYearMoment(local)},
		{domain.OccasionBirthday, domain.BirthdayMoment(birthday, local)},
	}
	for _, sp := range specials {
		if !sp.now || !sch.SpecialDue(sp.occasion, local.Year()) {
			continue
		}
		err := s.guard(func() error { return s.disp.Greet(ctx, uid, sp.occasion, profile) })
		if err != nil {
			log.Warn("greeting failed", zap.String("occasion", string(sp.occasion)), zap.Error(err))
			report.Failed++
			continue
		}
		sch.MarkSpecial(sp.occasion, local.Year())
		report.Greeted++
		dirty = true
		log.Info("greeted", zap.String("occasion", string(sp.occasion)))
	}
	return dirty
}

// guard runs fn, converting a panic into an error.
func (s *Scheduler) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
