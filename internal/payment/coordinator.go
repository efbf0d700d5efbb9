package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
	kafkax "github.com/TranNgocKhiet/meal-prep-service-sub000/internal/kafka"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
)

// StockReleaser is the slice of the inventory ledger the coordinator needs:
// unwind every reservation of a failed order in one atomic step.
type StockReleaser interface {
	ReleaseOrder(ctx context.Context, orderID string) error
}

// Scheduler creates the order's delivery schedule; the call is idempotent per
// order on the delivery side.
type Scheduler interface {
	CreateSchedule(ctx context.Context, orderID, address, contact string, deliverAt time.Time) (string, error)
}

// Result reports what a gateway callback did. Applied is false when the
// callback was a replay and the order was left untouched.
type Result struct {
	OrderID    string        `json:"order_id"`
	Status     orders.Status `json:"status"`
	ScheduleID string        `json:"schedule_id,omitempty"`
	Applied    bool          `json:"applied"`
}

type Coordinator struct {
	Orders            orders.Store
	Ledger            StockReleaser
	Scheduler         Scheduler
	Validator         Validator
	ProducerConfirmed orders.Publisher
	ProducerFailed    orders.Publisher
	ServiceName       string
	Log               *zap.Logger
}

// ConfirmCashPayment settles a COD order: the delivery agent collected the
// cash, so the order is confirmed and its schedule created.
func (c *Coordinator) ConfirmCashPayment(ctx context.Context, orderID, confirmingPartyID string) (*orders.Order, error) {
	if confirmingPartyID == "" {
		return nil, apperr.Validation("confirming party is required")
	}
	o, err := c.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusPendingPayment || o.PaymentMethod != orders.PaymentCOD {
		return nil, apperr.InvalidTransition(orderID,
			fmt.Sprintf("cannot confirm payment: status %s, method %q", o.Status, o.PaymentMethod))
	}

	now := time.Now().UTC()
	o.Status = orders.StatusConfirmed
	o.PaymentConfirmedAt = &now
	o.PaymentConfirmedBy = confirmingPartyID
	o.UpdatedAt = now
	if err := c.Orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	schedID, err := c.Scheduler.CreateSchedule(ctx, o.ID, o.DeliveryAddress, o.DeliveryContact, o.DeliveryDate)
	if err != nil {
		return nil, fmt.Errorf("create delivery schedule: %w", err)
	}

	c.publishConfirmed(o, schedID)
	c.Log.Info("cash payment confirmed",
		zap.String("order_id", o.ID),
		zap.String("confirmed_by", confirmingPartyID),
		zap.String("schedule_id", schedID),
	)
	return o, nil
}

// ProcessGatewayCallback applies one provider callback to its order. Replays
// are detected by the order's status and transaction id and applied as no-ops,
// so the same callback can be delivered any number of times.
func (c *Coordinator) ProcessGatewayCallback(ctx context.Context, cb Callback) (*Result, error) {
	if !c.Validator.Validate(cb) {
		return nil, apperr.InvalidCallback("invalid gateway callback")
	}

	o, err := c.Orders.Get(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}

	// replay: already confirmed by this very transaction
	if o.Status == orders.StatusConfirmed && o.GatewayTxID == cb.TransactionID {
		schedID := ""
		if s, err := c.Scheduler.CreateSchedule(ctx, o.ID, o.DeliveryAddress, o.DeliveryContact, o.DeliveryDate); err == nil {
			schedID = s
		}
		return &Result{OrderID: o.ID, Status: o.Status, ScheduleID: schedID, Applied: false}, nil
	}
	// replay: already failed. Re-run the release so a rollback interrupted
	// between persist and release still converges; it restores nothing once
	// the reservation records are flipped.
	if o.Status == orders.StatusPaymentFailed {
		if err := c.Ledger.ReleaseOrder(ctx, o.ID); err != nil {
			return nil, fmt.Errorf("release reservations: %w", err)
		}
		return &Result{OrderID: o.ID, Status: o.Status, Applied: false}, nil
	}

	if o.Status != orders.StatusPendingPayment || o.PaymentMethod != orders.PaymentGateway {
		return nil, apperr.InvalidTransition(cb.OrderID,
			fmt.Sprintf("cannot apply gateway callback: status %s, method %q", o.Status, o.PaymentMethod))
	}

	now := time.Now().UTC()
	if cb.ResponseCode == ResponseCodeSuccess {
		o.Status = orders.StatusConfirmed
		o.GatewayTxID = cb.TransactionID
		o.PaymentConfirmedAt = &now
		o.UpdatedAt = now
		if err := c.Orders.Update(ctx, o); err != nil {
			return nil, fmt.Errorf("persist order: %w", err)
		}
		schedID, err := c.Scheduler.CreateSchedule(ctx, o.ID, o.DeliveryAddress, o.DeliveryContact, o.DeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("create delivery schedule: %w", err)
		}
		c.publishConfirmed(o, schedID)
		c.Log.Info("gateway payment confirmed",
			zap.String("order_id", o.ID), zap.String("tx_id", cb.TransactionID))
		return &Result{OrderID: o.ID, Status: o.Status, ScheduleID: schedID, Applied: true}, nil
	}

	// decline: fail the order, then restore every line's stock in one ledger
	// transaction
	o.Status = orders.StatusPaymentFailed
	o.GatewayTxID = cb.TransactionID
	o.UpdatedAt = now
	if err := c.Orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	if err := c.Ledger.ReleaseOrder(ctx, o.ID); err != nil {
		// status is already PAYMENT_FAILED; the provider's retry replays into
		// the branch above and re-runs the release
		return nil, fmt.Errorf("release reservations: %w", err)
	}

	c.publishFailed(o, cb.ResponseCode)
	c.Log.Info("gateway payment declined",
		zap.String("order_id", o.ID),
		zap.String("tx_id", cb.TransactionID),
		zap.String("response_code", cb.ResponseCode),
	)
	return &Result{OrderID: o.ID, Status: o.Status, Applied: true}, nil
}

func (c *Coordinator) publishConfirmed(o *orders.Order, scheduleID string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventPaymentConfirmed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.PaymentConfirmedPayload{
			OrderID:     o.ID,
			Method:      string(o.PaymentMethod),
			GatewayTxID: o.GatewayTxID,
			ConfirmedBy: o.PaymentConfirmedBy,
			ScheduleID:  scheduleID,
			AmountCents: o.TotalCents,
		}),
	}
	c.ProducerConfirmed.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentConfirmed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (c *Coordinator) publishFailed(o *orders.Order, code string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventPaymentFailed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.PaymentFailedPayload{
			OrderID:      o.ID,
			Method:       string(o.PaymentMethod),
			ResponseCode: code,
			Reason:       "GATEWAY_DECLINED",
		}),
	}
	c.ProducerFailed.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentFailed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
