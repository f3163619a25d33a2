package progress

import (
	"context"
	"sync"

	"github.com/claude/pushreps/internal/models"
)

// MemoryBackend keeps the aggregate in process memory. Used for the
// "memory" storage driver and in tests.
type MemoryBackend struct {
	mu      sync.Mutex
	agg     *models.ProgressAggregate
	saveErr error
	saves   int
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(_ context.Context) (*models.ProgressAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agg == nil {
		return nil, nil
	}
	agg := m.agg.Clone()
	return &agg, nil
}

func (m *MemoryBackend) Save(_ context.Context, agg *models.ProgressAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := agg.Clone()
	m.agg = &c
	m.saves++
	return nil
}

// FailSaves makes every following Save return err. Pass nil to recover.
func (m *MemoryBackend) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves reports how many saves succeeded.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
