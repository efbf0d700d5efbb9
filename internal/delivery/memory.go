package delivery

import (
	"context"
	"sync"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Schedule
	byOrder map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Schedule),
		byOrder: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(ctx context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrder[s.OrderID]; ok {
		return ErrDuplicateOrder
	}
	cp := *s
	m.byID[s.ID] = &cp
	m.byOrder[s.OrderID] = s.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("schedule", id)
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ByOrder(ctx context.Context, orderID string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, apperr.NotFound("schedule for order", orderID)
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; !ok {
		return apperr.NotFound("schedule", s.ID)
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}
