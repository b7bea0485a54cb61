package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/store"
)

type call struct {
	uid      int64
	kind     domain.Kind
	occasion domain.Occasion
	local    time.Time
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []call
	fail  map[domain.Kind]error
	panic domain.Kind
	// during runs inside Dispatch, outside the lock.
	during func(uid int64)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, uid int64, kind domain.Kind, now time.Time) error {
	if kind == f.panic {
		panic("boom")
	}
	if f.during != nil {
		f.during(uid)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{uid: uid, kind: kind, local: now})
	return f.fail[kind]
}

func (f *fakeDispatcher) Greet(_ context.Context, uid int64, o domain.Occasion, _ domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{uid: uid, occasion: o})
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	sched *Scheduler
	repo  *store.MemoryRepo
	disp  *fakeDispatcher
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, at time.Time, seed func(st *domain.State)) *fixture {
	t.Helper()
	repo := store.NewMemory()
	st := domain.NewState()
	seed(st)
	require.NoError(t, repo.Save(context.Background(), st))

	f := &fixture{
		repo:  repo,
		disp:  &fakeDispatcher{fail: map[domain.Kind]error{}},
		clock: clockwork.NewFakeClockAt(at),
	}
	f.sched = New(Deps{
		Repo:       repo,
		Dispatcher: f.disp,
		Clock:      f.clock,
		Log:        zap.NewNop(),
		DefaultTZ:  "Europe/Moscow",
	})
	return f
}

func (f *fixture) schedule(t *testing.T, uid int64) *domain.Schedule {
	t.Helper()
	st, err := f.repo.Load(context.Background())
	require.NoError(t, err)
	return st.Schedules[uid]
}

// allow adds an admitted user with a schedule in tz and one configured kind.
func allow(st *domain.State, uid int64, tz string, kind domain.Kind, at string, lastSent map[string]string) *domain.Schedule {
	st.Users[uid] = &domain.User{Profile: domain.Profile{ID: uid, FirstName: "Bilbo"}, Status: domain.StatusAllowed}
	sch, _ := domain.EnsureSchedule(st, uid, tz)
	if kind != "" {
		e := sch.Entry(kind)
		e.SetTime(at)
		if lastSent != nil {
			e.LastSent = lastSent
		}
	}
	return sch
}

// Moscow is UTC+3 all year.
func moscow(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh-3, mm, 0, 0, time.UTC)
}

func TestTick_FiresAtLocalTime(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		allow(st, 42, "Europe/Moscow", domain.KindBase, "08:00", nil)
	})

	report := f.sched.Tick(context.Background())

	require.Len(t, f.disp.calls, 1)
	assert.Equal(t, int64(42), f.disp.calls[0].uid)
	assert.Equal(t, domain.KindBase, f.disp.calls[0].kind)
	assert.Equal(t, "08:00", f.disp.calls[0].local.Format("15:04"))
	assert.Equal(t, 1, report.Fired)
	assert.True(t, report.Saved)
	assert.Equal(t, map[string]string{"08:00": "2024-03-05"}, f.schedule(t, 42).Entry(domain.KindBase).LastSent)

	f.sched.Tick(context.Background())
	assert.Len(t, f.disp.calls, 1, "second tick in the same minute must not refire")
}

func TestTick_IdempotenceToken(t *testing.T) {
	seed := func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindHolidays, "09:00", map[string]string{"09:00": "2024-01-01"})
	}

	t.Run("same day", func(t *testing.T) {
		f := newFixture(t, moscow(2024, time.January, 1, 9, 0), seed)
		report := f.sched.Tick(context.Background())
		assert.Zero(t, f.disp.count())
		assert.False(t, report.Saved)
	})

	t.Run("next day", func(t *testing.T) {
		f := newFixture(t, moscow(2024, time.January, 2, 9, 0), seed)
		f.sched.Tick(context.Background())
		f.sched.Tick(context.Background())
		assert.Equal(t, 1, f.disp.count())
		assert.Equal(t, map[string]string{"09:00": "2024-01-02"}, f.schedule(t, 1).Entry(domain.KindHolidays).LastSent)
	})
}

func TestTick_GlobalDisabledNeverFires(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		sch := allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
		sch.Entry(domain.KindFilmsDay).SetTime("08:00")
		sch.Enabled = false
	})

	report := f.sched.Tick(context.Background())
	assert.Zero(t, f.disp.count())
	assert.Zero(t, report.Users)
}

func TestTick_SkipsUsersNotAdmitted(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
		st.Users[1].Status = domain.StatusPending
	})

	f.sched.Tick(context.Background())
	assert.Zero(t, f.disp.count())
}

func TestTick_AdminWithoutUserRecordFires(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		st.Admins[7] = struct{}{}
		sch, _ := domain.EnsureSchedule(st, 7, "Europe/Moscow")
		sch.Entry(domain.KindBase).SetTime("08:00")
	})

	f.sched.Tick(context.Background())
	assert.Equal(t, 1, f.disp.count())
}

func TestTick_FilmsMonthOnlyOnFirstDay(t *testing.T) {
	seed := func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindFilmsMonth, "10:00", nil)
	}

	f := newFixture(t, moscow(2024, time.March, 2, 10, 0), seed)
	f.sched.Tick(context.Background())
	assert.Zero(t, f.disp.count())

	f = newFixture(t, moscow(2024, time.March, 1, 10, 0), seed)
	f.sched.Tick(context.Background())
	assert.Equal(t, 1, f.disp.count())
}

func TestTick_ChangedTimeFiresSameDay(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
	})
	f.sched.Tick(context.Background())
	require.Equal(t, 1, f.disp.count())

	st, err := f.repo.Load(context.Background())
	require.NoError(t, err)
	st.Schedules[1].Entry(domain.KindBase).SetTime("08:30")
	require.NoError(t, f.repo.Save(context.Background(), st))

	f.clock.Advance(30 * time.Minute)
	f.sched.Tick(context.Background())
	assert.Equal(t, 2, f.disp.count())
	assert.Equal(t, map[string]string{"08:30": "2024-03-05"}, f.schedule(t, 1).Entry(domain.KindBase).LastSent)
}

func TestTick_FailureLeavesTokenForRetry(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
	})
	f.disp.fail[domain.KindBase] = errors.New("nothing sent")

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Saved)

	delete(f.disp.fail, domain.KindBase)
	f.clock.Advance(30 * time.Second)
	report = f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 2, f.disp.count())
}

func TestTick_ContentFetchErrorRefiresNextTick(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 9, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindHolidays, "09:00", nil)
	})
	f.disp.fail[domain.KindHolidays] = fmt.Errorf("delivered notice only: %w",
		&domain.ContentFetchError{Source: "holidays", Err: errors.New("site down")})

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, f.schedule(t, 1).Entry(domain.KindHolidays).LastSent)

	f.clock.Advance(30 * time.Second)
	report = f.sched.Tick(context.Background())
	assert.Equal(t, 2, f.disp.count(), "fetch is attempted again within the same minute")
	assert.Equal(t, 1, report.Failed)

	delete(f.disp.fail, domain.KindHolidays)
	f.clock.Advance(10 * time.Second)
	report = f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, map[string]string{"09:00": "2024-03-05"}, f.schedule(t, 1).Entry(domain.KindHolidays).LastSent)
}

func TestTick_EachUserJudgedAtOwnMoment(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
		allow(st, 2, "Europe/Moscow", domain.KindBase, "08:01", nil)
	})
	f.clock.Advance(40 * time.Second)
	f.disp.during = func(uid int64) {
		if uid == 1 {
			f.clock.Advance(27 * time.Second)
		}
	}

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 2, report.Fired)
	require.Len(t, f.disp.calls, 2)
	assert.Equal(t, "08:01", f.disp.calls[1].local.Format("15:04"))
}

func TestTick_BirthdayWithoutScheduleRow(t *testing.T) {
	f := newFixture(t, moscow(2025, time.June, 10, 10, 0), func(st *domain.State) {
		bd := time.Date(1990, time.June, 10, 0, 0, 0, 0, time.UTC)
		st.Users[5] = &domain.User{Profile: domain.Profile{ID: 5, FirstName: "Sam"}, Status: domain.StatusAllowed, Birthday: &bd}
		st.Users[6] = &domain.User{Profile: domain.Profile{ID: 6}, Status: domain.StatusPending, Birthday: &bd}
	})

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, 1, report.Greeted)
	require.Equal(t, 1, f.disp.count())
	assert.Equal(t, int64(5), f.disp.calls[0].uid)
	assert.Equal(t, domain.OccasionBirthday, f.disp.calls[0].occasion)

	sch := f.schedule(t, 5)
	require.NotNil(t, sch)
	assert.True(t, sch.Enabled)
	assert.Equal(t, "Europe/Moscow", sch.TZ)
	assert.Equal(t, 2025, sch.SpecialFlags["birthday"])
	assert.Nil(t, f.schedule(t, 6))
}

func TestTick_AdmittedUserGetsDefaultScheduleOnce(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		st.Users[9] = &domain.User{Profile: domain.Profile{ID: 9}, Status: domain.StatusAllowed}
	})

	report := f.sched.Tick(context.Background())
	assert.True(t, report.Saved)
	assert.NotNil(t, f.schedule(t, 9))

	report = f.sched.Tick(context.Background())
	assert.False(t, report.Saved)
	assert.Zero(t, f.disp.count())
}

func TestTick_PanicIsolatedPerKind(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		sch := allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
		sch.Entry(domain.KindFilmsDay).SetTime("08:00")
		allow(st, 2, "Europe/Moscow", domain.KindFilmsDay, "08:00", nil)
	})
	f.disp.panic = domain.KindBase

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Fired)
	assert.Empty(t, f.schedule(t, 1).Entry(domain.KindBase).LastSent)
}

func TestTick_UnresolvableTimezoneUsesUTC(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC), func(st *domain.State) {
		sch := allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
		sch.TZ = "Middle/Earth"
	})

	f.sched.Tick(context.Background())
	assert.Equal(t, 1, f.disp.count())
}

func TestTick_NewYearGreetingOncePerYear(t *testing.T) {
	f := newFixture(t, moscow(2025, time.January, 1, 0, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", "", "", nil)
	})

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Greeted)
	f.sched.Tick(context.Background())

	require.Equal(t, 1, f.disp.count())
	assert.Equal(t, domain.OccasionNewYear, f.disp.calls[0].occasion)
	assert.Equal(t, 2025, f.schedule(t, 1).SpecialFlags["new_year"])
}

func TestTick_BirthdayGreeting(t *testing.T) {
	f := newFixture(t, moscow(2025, time.February, 28, 10, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", "", "", nil)
		bd := time.Date(1992, time.February, 29, 0, 0, 0, 0, time.UTC)
		st.Users[1].Birthday = &bd
	})

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Greeted)
	require.Equal(t, 1, f.disp.count())
	assert.Equal(t, domain.OccasionBirthday, f.disp.calls[0].occasion)
	assert.Equal(t, 2025, f.schedule(t, 1).SpecialFlags["birthday"])
}

func TestTick_SaveFailureReported(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 8, 0), func(st *domain.State) {
		allow(st, 1, "Europe/Moscow", domain.KindBase, "08:00", nil)
	})
	f.repo.FailSave = errors.New("read only")

	report := f.sched.Tick(context.Background())
	assert.Equal(t, 1, report.Fired)
	var se *domain.StorageError
	assert.ErrorAs(t, report.SaveErr, &se)
	assert.Equal(t, int64(1), f.sched.Metrics().Summary().SaveErrors)
}

func TestNew_IntervalFloor(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(Deps{Log: zap.NewNop()}).Interval())
	assert.Equal(t, MinInterval, New(Deps{Log: zap.NewNop(), Interval: time.Second}).Interval())
	assert.Equal(t, time.Minute, New(Deps{Log: zap.NewNop(), Interval: time.Minute}).Interval())
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	f := newFixture(t, moscow(2024, time.March, 5, 7, 59), func(st *domain.State) {
		allow(st, 42, "Europe/Moscow", domain.KindBase, "08:00", nil)
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sched.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return f.disp.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, f.sched.Metrics().Summary().Deliveries, int64(1))
}
