package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/redisx"
)

// Assigner consumes payment-confirmed events and assigns a courier to each
// order's schedule, round-robin over the configured roster.
type Assigner struct {
	Schedules *Service
	Redis     *redis.Client
	Couriers  []string
	Log       *zap.Logger
}

// HandlePaymentConfirmed is installed as the consumer handler. A non-nil
// return keeps the offset uncommitted so the event is retried.
func (a *Assigner) HandlePaymentConfirmed(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventPaymentConfirmed {
		return nil
	}

	// dedup by event id so a redelivered event assigns nothing twice
	dkey := fmt.Sprintf(redisx.KeyDedup, "delivery", env.EventID)
	seen, err := redisx.Exists(ctx, a.Redis, dkey)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	var p orders.PaymentConfirmedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}

	sched, err := a.Schedules.ByOrder(ctx, p.OrderID)
	if err != nil {
		// the schedule write may not be visible yet; retry via redelivery
		return fmt.Errorf("schedule for order %s: %w", p.OrderID, err)
	}
	if sched.Courier == "" {
		courier, err := a.nextCourier(ctx)
		if err != nil {
			return err
		}
		if _, err := a.Schedules.AssignCourier(ctx, sched.ID, courier); err != nil {
			return err
		}
	}

	if err := a.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		a.Log.Warn("dedup marker write failed", zap.String("event_id", env.EventID), zap.Error(err))
	}
	return nil
}

func (a *Assigner) nextCourier(ctx context.Context) (string, error) {
	if len(a.Couriers) == 0 {
		return "", fmt.Errorf("no couriers configured")
	}
	n, err := a.Redis.Incr(ctx, redisx.KeyCourierCursor).Result()
	if err != nil {
		return "", fmt.Errorf("advance courier cursor: %w", err)
	}
	return a.Couriers[int(n)%len(a.Couriers)], nil
}
