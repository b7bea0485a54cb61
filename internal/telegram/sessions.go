package telegram

import (
	"sync"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// Step is the position of a user inside a multi-message dialog.
type Step int

const (
	StepNone Step = iota
	StepAddKind
	StepAddTime
	StepDelKind
)

// Session is the dialog state of one user.
type Session struct {
	Step Step
	Kind domain.Kind // set once StepAddTime is reached
}

// Sessions holds in-progress dialogs keyed by user id. Entries are removed
// when a dialog completes or is abandoned.
type Sessions struct {
	mu    sync.RWMutex
	state map[int64]Session
}

// NewSessions returns an empty session table.
func NewSessions() *Sessions {
	return &Sessions{state: make(map[int64]Session)}
}

// Get returns the session of uid, if one is open.
func (s *Sessions) Get(uid int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.state[uid]
	return sess, ok
}

// Set opens or advances the session of uid.
func (s *Sessions) Set(uid int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[uid] = sess
}

// Clear ends the session of uid.
func (s *Sessions) Clear(uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, uid)
}
