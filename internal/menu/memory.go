package menu

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

type resKey struct{ orderID, offeringID string }

// MemoryLedger keeps offerings and reservation records in maps under one
// mutex, which makes every operation atomic with respect to the others. It
// backs the service tests and small single-node deployments.
type MemoryLedger struct {
	mu           sync.Mutex
	offerings    map[string]*Offering
	reservations map[resKey]*Reservation
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		offerings:    make(map[string]*Offering),
		reservations: make(map[resKey]*Reservation),
	}
}

var _ Ledger = (*MemoryLedger)(nil)

func (m *MemoryLedger) Publish(ctx context.Context, o *Offering) error {
	if o.AvailableQty < 0 {
		return apperr.Validation("available quantity must not be negative")
	}
	if o.PriceCents < 0 {
		return apperr.Validation("price must not be negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	m.offerings[o.ID] = &cp
	return nil
}

func (m *MemoryLedger) Reserve(ctx context.Context, orderID, offeringID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperr.Validationf("reserve quantity must be positive, got %d", qty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offerings[offeringID]
	if !ok {
		return 0, apperr.NotFound("offering", offeringID)
	}
	if o.AvailableQty < qty {
		return 0, apperr.InsufficientStock(offeringID, qty, o.AvailableQty)
	}
	o.AvailableQty -= qty
	o.UpdatedAt = time.Now().UTC()

	key := resKey{orderID: orderID, offeringID: offeringID}
	if r, ok := m.reservations[key]; ok && r.Status == ReservationReserved {
		r.Qty += qty
	} else {
		m.reservations[key] = &Reservation{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			OfferingID: offeringID,
			Qty:        qty,
			Status:     ReservationReserved,
			CreatedAt:  time.Now().UTC(),
		}
	}
	return o.PriceCents, nil
}

func (m *MemoryLedger) Release(ctx context.Context, offeringID string, qty int) error {
	if qty < 0 {
		return apperr.Validationf("release quantity must not be negative, got %d", qty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offerings[offeringID]
	if !ok {
		return apperr.NotFound("offering", offeringID)
	}
	o.AvailableQty += qty
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryLedger) ReleaseOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reservations {
		if r.OrderID != orderID || r.Status != ReservationReserved {
			continue
		}
		if o, ok := m.offerings[r.OfferingID]; ok {
			o.AvailableQty += r.Qty
			o.UpdatedAt = time.Now().UTC()
		}
		r.Status = ReservationReleased
	}
	return nil
}

func (m *MemoryLedger) Offering(ctx context.Context, id string) (*Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offerings[id]
	if !ok {
		return nil, apperr.NotFound("offering", id)
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryLedger) ByDate(ctx context.Context, day time.Time) ([]Offering, error) {
	key := day.Format("2006-01-02")
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Offering, 0)
	for _, o := range m.offerings {
		if o.MenuDate.Format("2006-01-02") == key {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipeName < out[j].RecipeName })
	return out, nil
}
