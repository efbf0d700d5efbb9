package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
	kafkax "github.com/TranNgocKhiet/meal-prep-service-sub000/internal/kafka"
)

// Ledger is the slice of the inventory ledger the order service needs:
// reserve per line while building an order, release everything on failure.
type Ledger interface {
	Reserve(ctx context.Context, orderID, offeringID string, qty int) (int, error)
	ReleaseOrder(ctx context.Context, orderID string) error
}

// AccountDirectory answers whether the ordering account exists.
type AccountDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Publisher matches the kafka producer's publish signature.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store             Store
	Ledger            Ledger
	Accounts          AccountDirectory
	ProducerCreated   Publisher
	ProducerDelivered Publisher
	ServiceName       string
	Log               *zap.Logger
}

// Create reserves stock for every requested item, captures the unit price the
// ledger returns, and persists the order as PENDING. If any reservation or the
// persist fails, every reservation already taken for this order is released
// before the error propagates; no partial order is ever visible.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	items, err := normalizeItems(req)
	if err != nil {
		return nil, err
	}

	ok, err := s.Accounts.Exists(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("account", req.AccountID)
	}

	now := time.Now().UTC()
	order := &Order{
		ID:              uuid.NewString(),
		AccountID:       req.AccountID,
		Status:          StatusPending,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryContact: req.DeliveryContact,
		DeliveryDate:    req.DeliveryDate,
		OrderedAt:       now,
		UpdatedAt:       now,
	}

	for _, it := range items {
		price, err := s.Ledger.Reserve(ctx, order.ID, it.OfferingID, it.Qty)
		if err != nil {
			s.unwind(ctx, order.ID)
			return nil, err
		}
		order.Lines = append(order.Lines, Line{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			OfferingID: it.OfferingID,
			Qty:        it.Qty,
			PriceCents: price,
		})
		order.TotalCents += it.Qty * price
	}

	if err := s.Store.Create(ctx, order); err != nil {
		s.unwind(ctx, order.ID)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.publishCreated(order)
	s.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("account_id", order.AccountID),
		zap.Int("lines", len(order.Lines)),
		zap.Int("total_cents", order.TotalCents),
	)
	return order, nil
}

// Get re-checks the total invariant on every read: a stored total that
// disagrees with the line totals is corruption, not a business error.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sum := o.LineTotalCents(); sum != o.TotalCents {
		return nil, fmt.Errorf("order %s: stored total %d disagrees with line total %d", id, o.TotalCents, sum)
	}
	return o, nil
}

// SelectPaymentMethod moves a PENDING order to PENDING_PAYMENT under the
// chosen method. Empty or unknown methods are rejected before the order is
// even loaded.
func (s *Service) SelectPaymentMethod(ctx context.Context, orderID string, method PaymentMethod) (*Order, error) {
	if !method.Valid() {
		return nil, apperr.InvalidPaymentMethod(string(method))
	}
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, apperr.InvalidTransition(orderID,
			fmt.Sprintf("cannot select payment method in status %s", o.Status))
	}
	o.PaymentMethod = method
	o.Status = StatusPendingPayment
	o.UpdatedAt = time.Now().UTC()
	if err := s.Store.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	s.Log.Info("payment method selected",
		zap.String("order_id", orderID), zap.String("method", string(method)))
	return o, nil
}

// MarkDelivered closes out a CONFIRMED order once its schedule completes.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusDelivered) {
		return nil, apperr.InvalidTransition(orderID,
			fmt.Sprintf("cannot mark delivered from status %s", o.Status))
	}
	o.Status = StatusDelivered
	o.UpdatedAt = time.Now().UTC()
	if err := s.Store.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	s.publishDelivered(o)
	s.Log.Info("order delivered", zap.String("order_id", orderID))
	return o, nil
}

// unwind releases whatever this order reserved so far. The ledger call is
// idempotent over reservation records, so a half-built order is fully undone
// no matter how many lines had been reserved.
func (s *Service) unwind(ctx context.Context, orderID string) {
	if err := s.Ledger.ReleaseOrder(ctx, orderID); err != nil {
		s.Log.Error("reservation unwind failed; stock may be held until retried",
			zap.String("order_id", orderID), zap.Error(err))
	}
}

func normalizeItems(req CreateRequest) ([]ItemInput, error) {
	if req.AccountID == "" {
		return nil, apperr.Validation("account_id is required")
	}
	if req.DeliveryAddress == "" {
		return nil, apperr.Validation("delivery_address is required")
	}
	if req.DeliveryContact == "" {
		return nil, apperr.Validation("delivery_contact is required")
	}
	if req.DeliveryDate.IsZero() {
		return nil, apperr.Validation("delivery_date is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	// merge duplicate offerings so each becomes a single line and a single
	// reservation record
	idx := make(map[string]int, len(req.Items))
	out := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		if it.OfferingID == "" {
			return nil, apperr.Validation("offering_id is required on every item")
		}
		if it.Qty <= 0 {
			return nil, apperr.Validationf("quantity for offering %s must be positive", it.OfferingID)
		}
		if i, ok := idx[it.OfferingID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.OfferingID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func (s *Service) publishCreated(o *Order) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderCreatedPayload{
			OrderID:      o.ID,
			AccountID:    o.AccountID,
			Items:        LinePayloads(o.Lines),
			TotalCents:   o.TotalCents,
			DeliveryDate: o.DeliveryDate,
		}),
	}
	s.ProducerCreated.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishDelivered(o *Order) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderDelivered,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(OrderDeliveredPayload{OrderID: o.ID}),
	}
	s.ProducerDelivered.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderDelivered)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
