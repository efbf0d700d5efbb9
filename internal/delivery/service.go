package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
)

// OrderMarker is the slice of the order service the completion path needs;
// *orders.Service satisfies it.
type OrderMarker interface {
	MarkDelivered(ctx context.Context, orderID string) (*orders.Order, error)
}

type Service struct {
	Store  Store
	Orders OrderMarker
	Log    *zap.Logger
}

// CreateSchedule creates the order's delivery schedule, or returns the
// existing schedule's ID when one was already created. The payment coordinator
// calls this on every confirmation, so repeats must not produce a second
// schedule.
func (s *Service) CreateSchedule(ctx context.Context, orderID, address, contact string, deliverAt time.Time) (string, error) {
	if orderID == "" {
		return "", apperr.Validation("order_id is required")
	}
	if address == "" || contact == "" {
		return "", apperr.Validation("delivery address and contact are required")
	}

	if existing, err := s.Store.ByOrder(ctx, orderID); err == nil {
		return existing.ID, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return "", fmt.Errorf("look up schedule: %w", err)
	}

	now := time.Now().UTC()
	sched := &Schedule{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Address:   address,
		Contact:   contact,
		DeliverAt: deliverAt,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.Store.Create(ctx, sched)
	if err == ErrDuplicateOrder {
		// lost a race with a concurrent confirmation; the winner's schedule
		// is the one
		existing, lerr := s.Store.ByOrder(ctx, orderID)
		if lerr != nil {
			return "", fmt.Errorf("look up schedule after duplicate: %w", lerr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("persist schedule: %w", err)
	}
	s.Log.Info("delivery schedule created",
		zap.String("schedule_id", sched.ID), zap.String("order_id", orderID))
	return sched.ID, nil
}

func (s *Service) AssignCourier(ctx context.Context, scheduleID, courier string) (*Schedule, error) {
	if courier == "" {
		return nil, apperr.Validation("courier is required")
	}
	sched, err := s.Store.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.Status == StatusCompleted {
		return nil, apperr.InvalidTransition(sched.OrderID, "cannot assign courier to a completed schedule")
	}
	sched.Courier = courier
	sched.Status = StatusAssigned
	sched.UpdatedAt = time.Now().UTC()
	if err := s.Store.Update(ctx, sched); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}
	s.Log.Info("courier assigned",
		zap.String("schedule_id", scheduleID), zap.String("courier", courier))
	return sched, nil
}

// Complete marks the schedule done and moves the order to DELIVERED.
func (s *Service) Complete(ctx context.Context, scheduleID string) (*Schedule, error) {
	sched, err := s.Store.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.Status == StatusCompleted {
		return nil, apperr.InvalidTransition(sched.OrderID, "schedule already completed")
	}
	sched.Status = StatusCompleted
	sched.UpdatedAt = time.Now().UTC()
	if err := s.Store.Update(ctx, sched); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}
	if _, err := s.Orders.MarkDelivered(ctx, sched.OrderID); err != nil {
		return nil, fmt.Errorf("mark order delivered: %w", err)
	}
	s.Log.Info("delivery completed",
		zap.String("schedule_id", scheduleID), zap.String("order_id", sched.OrderID))
	return sched, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Schedule, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) ByOrder(ctx context.Context, orderID string) (*Schedule, error) {
	return s.Store.ByOrder(ctx, orderID)
}
