package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{accounts: make(map[string]*Account)}
}

var _ Directory = (*MemoryDirectory)(nil)

func (m *MemoryDirectory) Put(ctx context.Context, a *Account) error {
	if a.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *MemoryDirectory) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[id]
	return ok, nil
}

func (m *MemoryDirectory) Get(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, apperr.NotFound("account", id)
	}
	cp := *a
	return &cp, nil
}
