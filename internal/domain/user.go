package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the admission state of a user record.
type Status string

const (
	StatusPending Status = "pending"
	StatusAllowed Status = "allowed"
)

// Profile is the identity data a chat platform reports about a user.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// User is a persisted admission record.
type User struct {
	Profile
	Status      Status
	AddedAt     *time.Time // UTC, set when allowed
	RequestedAt *time.Time // UTC, set while pending
	Birthday    *time.Time // date only, UTC midnight
}

// DisplayName prefers the full name, then @username, then the numeric id.
func (p Profile) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if full != "" {
		return full
	}
	if p.Username != "" {
		return FormatUsername(p.Username)
	}
	return "id " + strconv.FormatInt(p.ID, 10)
}

// FormatUsername renders a handle with a single leading @, or a dash when empty.
func FormatUsername(username string) string {
	if username == "" {
		return "—"
	}
	if strings.HasPrefix(username, "@") {
		return username
	}
	return "@" + username
}

// State is the whole persisted data set; the store loads and saves it atomically.
type State struct {
	Admins    map[int64]struct{}
	Users     map[int64]*User
	Schedules map[int64]*Schedule
}

// NewState returns an empty, ready to use state.
func NewState() *State {
	return &State{
		Admins:    make(map[int64]struct{}),
		Users:     make(map[int64]*User),
		Schedules: make(map[int64]*Schedule),
	}
}

// IsAdmin reports membership in the admin allow-list.
func (s *State) IsAdmin(uid int64) bool {
	_, ok := s.Admins[uid]
	return ok
}

// IsAllowed reports whether uid may use content features.
func (s *State) IsAllowed(uid int64) bool {
	if s.IsAdmin(uid) {
		return true
	}
	u, ok := s.Users[uid]
	return ok && u.Status == StatusAllowed
}

// AdminIDs returns the admin set in ascending order.
func (s *State) AdminIDs() []int64 {
	ids := make([]int64, 0, len(s.Admins))
	for id := range s.Admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AdmittedIDs returns admins and allowed users in ascending order.
func (s *State) AdmittedIDs() []int64 {
	seen := make(map[int64]struct{}, len(s.Admins)+len(s.Users))
	ids := make([]int64, 0, len(s.Admins)+len(s.Users))
	for id := range s.Admins {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id, u := range s.Users {
		if _, ok := seen[id]; ok || u.Status != StatusAllowed {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UsersByStatus returns users with the given status ordered by id.
func (s *State) UsersByStatus(st Status) []*User {
	var res []*User
	for _, u := range s.Users {
		if u.Status == st {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := NewState()
	for id := range s.Admins {
		c.Admins[id] = struct{}{}
	}
	for id, u := range s.Users {
		cu := *u
		cu.AddedAt = copyTime(u.AddedAt)
		cu.RequestedAt = copyTime(u.RequestedAt)
		cu.Birthday = copyTime(u.Birthday)
		c.Users[id] = &cu
	}
	for id, sch := range s.Schedules {
		if sch != nil {
			c.Schedules[id] = sch.Clone()
		}
	}
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
