package store

import (
	"context"
	"sync"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// MemoryRepo keeps the snapshot in process memory. Load and Save copy the
// state, so callers never share maps with the repository.
type MemoryRepo struct {
	mu    sync.Mutex
	state *domain.State
	saves int

	// FailSave, when set, is returned by Save instead of storing.
	FailSave error
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{state: domain.NewState()}
}

func (m *MemoryRepo) Load(context.Context) (*domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

func (m *MemoryRepo) Save(_ context.Context, st *domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return &domain.StorageError{Op: "save", Err: m.FailSave}
	}
	m.state = st.Clone()
	m.saves++
	return nil
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

func (m *MemoryRepo) Close() error { return nil }

// Saves reports how many snapshots were stored.
func (m *MemoryRepo) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
