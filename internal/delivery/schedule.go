// Package delivery owns the schedules created when an order's payment is
// confirmed: one schedule per order, assigned to a courier, completed on
// drop-off.
package delivery

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
)

type Schedule struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Address   string    `json:"address"`
	Contact   string    `json:"contact"`
	DeliverAt time.Time `json:"deliver_at"`
	Courier   string    `json:"courier,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrDuplicateOrder is returned by Create when a schedule for the order
// already exists; OrderID is unique per schedule.
var ErrDuplicateOrder = errors.New("schedule already exists for order")

type Store interface {
	Create(ctx context.Context, s *Schedule) error
	Get(ctx context.Context, id string) (*Schedule, error)
	ByOrder(ctx context.Context, orderID string) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
}
