package orders

import (
	"context"
	"sync"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

// MemoryStore keeps orders in a map under an RWMutex and hands out copies, so
// callers can never mutate stored state except through Update.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return ErrAlreadyExists
	}
	m.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) Update(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return apperr.NotFound("order", o.ID)
	}
	m.orders[o.ID] = copyOrder(o)
	return nil
}

func copyOrder(o *Order) *Order {
	cp := *o
	cp.Lines = make([]Line, len(o.Lines))
	copy(cp.Lines, o.Lines)
	if o.PaymentConfirmedAt != nil {
		t := *o.PaymentConfirmedAt
		cp.PaymentConfirmedAt = &t
	}
	return &cp
}
