// Package access implements the admission workflow: users ask to join,
// admins approve or deny them.
package access

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ykvlv/legendalf-bot/internal/domain"
	"github.com/ykvlv/legendalf-bot/internal/events"
	"github.com/ykvlv/legendalf-bot/internal/store"
)

// Admission is the outcome of an admission request.
type Admission int

const (
	AlreadyAdmitted Admission = iota
	AlreadyPending
	NewlyQueued
)

func (a Admission) String() string {
	switch a {
	case AlreadyAdmitted:
		return "already_admitted"
	case AlreadyPending:
		return "already_pending"
	case NewlyQueued:
		return "newly_queued"
	}
	return "unknown"
}

// Service answers access questions and mutates admission records.
type Service struct {
	repo  store.Repo
	bus   events.Bus
	clock clockwork.Clock
	log   *zap.Logger
}

// New creates an access service.
func New(repo store.Repo, bus events.Bus, clock clockwork.Clock, log *zap.Logger) *Service {
	return &Service{repo: repo, bus: bus, clock: clock, log: log}
}

// IsAdmin reports whether uid is in the admin set.
func (s *Service) IsAdmin(ctx context.Context, uid int64) (bool, error) {
	st, err := s.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	return st.IsAdmin(uid), nil
}

// IsAllowed reports whether uid is an admin or an allowed user.
func (s *Service) IsAllowed(ctx context.Context, uid int64) (bool, error) {
	st, err := s.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	return st.IsAllowed(uid), nil
}

// RequestAdmission queues p for review unless it is already admitted or waiting.
func (s *Service) RequestAdmission(ctx context.Context, p domain.Profile) (Admission, error) {
	now := s.clock.Now().UTC()
	res := AlreadyPending
	err := store.Update(ctx, s.repo, func(st *domain.State) (bool, error) {
		if st.IsAllowed(p.ID) {
			res = AlreadyAdmitted
			return false, nil
		}
		if u, ok := st.Users[p.ID]; ok && u.Status == domain.StatusPending {
			res = AlreadyPending
			return false, nil
		}
		st.Users[p.ID] = &domain.User{Profile: p, Status: domain.StatusPending, RequestedAt: &now}
		res = NewlyQueued
		return true, nil
	})
	if err != nil {
		return 0, err
	}

	if res == NewlyQueued {
		s.log.Info("admission requested", zap.Int64("uid", p.ID), zap.String("username", p.Username))
		s.publish(events.TopicAdmissionRequested, events.AdmissionRequested{
			Event:       events.NewEvent(now),
			Profile:     p,
			RequestedAt: now,
		})
	}
	return res, nil
}

// Approve admits uid. A pending record keeps its profile; an unknown id is admitted
// with an empty profile. Approving an allowed user changes nothing.
func (s *Service) Approve(ctx context.Context, uid int64) (*domain.User, error) {
	now := s.clock.Now().UTC()
	var (
		out     domain.User
		changed bool
	)
	err := store.Update(ctx, s.repo, func(st *domain.State) (bool, error) {
		u, ok := st.Users[uid]
		if ok && u.Status == domain.StatusAllowed {
			out = *u
			return false, nil
		}
		if !ok {
			u = &domain.User{Profile: domain.Profile{ID: uid}}
			st.Users[uid] = u
		}
		u.Status = domain.StatusAllowed
		u.RequestedAt = nil
		u.AddedAt = &now
		out = *u
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Info("admission approved", zap.Int64("uid", uid))
		s.publish(events.TopicAdmissionApproved, events.AdmissionDecided{
			Event:    events.NewEvent(now),
			UserID:   uid,
			Approved: true,
		})
	}
	return &out, nil
}

// Deny drops a pending request. It reports whether a record was removed;
// allowed users are never touched.
func (s *Service) Deny(ctx context.Context, uid int64) (bool, error) {
	removed := false
	err := store.Update(ctx, s.repo, func(st *domain.State) (bool, error) {
		u, ok := st.Users[uid]
		if !ok || u.Status != domain.StatusPending {
			return false, nil
		}
		delete(st.Users, uid)
		removed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.log.Info("admission denied", zap.Int64("uid", uid))
		s.publish(events.TopicAdmissionDenied, events.AdmissionDecided{
			Event:  events.NewEvent(s.clock.Now().UTC()),
			UserID: uid,
		})
	}
	return removed, nil
}

// SyncAdmins replaces the persisted admin set with ids.
func (s *Service) SyncAdmins(ctx context.Context, ids []int64) error {
	return store.Update(ctx, s.repo, func(st *domain.State) (bool, error) {
		want := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
		if sameSet(st.Admins, want) {
			return false, nil
		}
		st.Admins = want
		return true, nil
	})
}

// Admins returns the admin ids in ascending order.
func (s *Service) Admins(ctx context.Context) ([]int64, error) {
	st, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.AdminIDs(), nil
}

// Pending lists users waiting for a decision, ordered by id.
func (s *Service) Pending(ctx context.Context) ([]domain.User, error) {
	st, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return copyUsers(st.UsersByStatus(domain.StatusPending)), nil
}

// Member is an admitted user with the schedule it has, if any.
type Member struct {
	User     domain.User
	Schedule *domain.Schedule
}

// Overview is the admin listing of the user base.
type Overview struct {
	Admitted []Member
	Pending  []domain.User
}

// Overview lists admitted users with their schedules, then pending ones.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	st, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	ov := &Overview{Pending: copyUsers(st.UsersByStatus(domain.StatusPending))}
	for _, u := range st.UsersByStatus(domain.StatusAllowed) {
		m := Member{User: *u}
		if sch, ok := st.Schedules[u.ID]; ok && sch != nil {
			m.Schedule = sch.Clone()
		}
		ov.Admitted = append(ov.Admitted, m)
	}
	return ov, nil
}

// SetBirthday stores a birthday for the user found by numeric id or @username.
// Allowed users are searched before pending ones.
func (s *Service) SetBirthday(ctx context.Context, identifier string, birthday time.Time) (*domain.User, error) {
	var out domain.User
	err := store.Update(ctx, s.repo, func(st *domain.State) (bool, error) {
		u := findUser(st, identifier)
		if u == nil {
			return false, domain.ErrUserNotFound
		}
		d := time.Date(birthday.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
		u.Birthday = &d
		out = *u
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("birthday set", zap.Int64("uid", out.ID))
	return &out, nil
}

func (s *Service) publish(topic string, ev interface{}) {
	if err := s.bus.Publish(topic, ev); err != nil {
		s.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func findUser(st *domain.State, identifier string) *domain.User {
	ident := strings.TrimPrefix(strings.TrimSpace(identifier), "@")
	if ident == "" {
		return nil
	}
	buckets := [][]*domain.User{
		st.UsersByStatus(domain.StatusAllowed),
		st.UsersByStatus(domain.StatusPending),
	}

	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		for _, bucket := range buckets {
			for _, u := range bucket {
				if u.ID == id {
					return u
				}
			}
		}
		return nil
	}

	needle := strings.ToLower(ident)
	for _, bucket := range buckets {
		for _, u := range bucket {
			if strings.ToLower(strings.TrimPrefix(u.Username, "@")) == needle {
				return u
			}
		}
	}
	return nil
}

func copyUsers(in []*domain.User) []domain.User {
	out := make([]domain.User, 0, len(in))
	for _, u := range in {
		out = append(out, *u)
	}
	return out
}

func sameSet(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
