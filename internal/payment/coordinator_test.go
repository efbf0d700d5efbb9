package payment

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/delivery"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/menu"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
)

type capturePub struct{ published int }

func (c *capturePub) Publish(key, value []byte, headers ...kafkago.Header) { c.published++ }

type dirFake struct{}

func (dirFake) Exists(ctx context.Context, id string) (bool, error) { return true, nil }

type env struct {
	ledger    *menu.MemoryLedger
	orders    *orders.Service
	schedules *delivery.Service
	coord     *Coordinator
	validator HMACValidator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ledger := menu.NewMemoryLedger()
	store := orders.NewMemoryStore()
	orderSvc := &orders.Service{
		Store:             store,
		Ledger:            ledger,
		Accounts:          dirFake{},
		ProducerCreated:   &capturePub{},
		ProducerDelivered: &capturePub{},
		ServiceName:       "test",
		Log:               zap.NewNop(),
	}
	schedSvc := &delivery.Service{
		Store:  delivery.NewMemoryStore(),
		Orders: orderSvc,
		Log:    zap.NewNop(),
	}
	validator := HMACValidator{Secret: []byte("test-secret")}
	coord := &Coordinator{
		Orders:            store,
		Ledger:            ledger,
		Scheduler:         schedSvc,
		Validator:         validator,
		ProducerConfirmed: &capturePub{},
		ProducerFailed:    &capturePub{},
		ServiceName:       "test",
		Log:               zap.NewNop(),
	}
	return &env{ledger: ledger, orders: orderSvc, schedules: schedSvc, coord: coord, validator: validator}
}

func (e *env) publishOffering(t *testing.T, id string, qty, priceCents int) {
	t.Helper()
	err := e.ledger.Publish(context.Background(), &menu.Offering{
		ID:           id,
		MenuDate:     time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		RecipeID:     "recipe-" + id,
		RecipeName:   "Recipe " + id,
		PriceCents:   priceCents,
		AvailableQty: qty,
	})
	if err != nil {
		t.Fatalf("publish offering: %v", err)
	}
}

func (e *env) createOrder(t *testing.T, method orders.PaymentMethod, items ...orders.ItemInput) *orders.Order {
	t.Helper()
	o, err := e.orders.Create(context.Background(), orders.CreateRequest{
		AccountID:       "acc-1",
		DeliveryAddress: "12 Elm St",
		DeliveryContact: "555-0101",
		DeliveryDate:    time.Date(2025, 3, 11, 11, 0, 0, 0, time.UTC),
		Items:           items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if method != "" {
		if o, err = e.orders.SelectPaymentMethod(context.Background(), o.ID, method); err != nil {
			t.Fatalf("select payment method: %v", err)
		}
	}
	return o
}

func (e *env) signedCallback(orderID, txID, code string, amount int) Callback {
	cb := Callback{OrderID: orderID, TransactionID: txID, ResponseCode: code, AmountCents: amount}
	cb.Signature = e.validator.Sign(cb)
	return cb
}

func TestConfirmCashPaymentCODPath(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentCOD, orders.ItemInput{OfferingID: "off-x", Qty: 3})

	got, err := e.coord.ConfirmCashPayment(context.Background(), o.ID, "agent-9")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != orders.StatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got.Status)
	}
	if got.PaymentConfirmedBy != "agent-9" {
		t.Errorf("confirmed by = %q, want agent-9", got.PaymentConfirmedBy)
	}
	if got.PaymentConfirmedAt == nil {
		t.Error("PaymentConfirmedAt not set")
	}

	sched, err := e.schedules.ByOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("schedule not created: %v", err)
	}
	if sched.Address != "12 Elm St" || sched.Contact != "555-0101" {
		t.Errorf("schedule carries wrong delivery details: %+v", sched)
	}
}

func TestConfirmCashPaymentGuards(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)

	// still PENDING: no method selected
	pending := e.createOrder(t, "", orders.ItemInput{OfferingID: "off-x", Qty: 1})
	if _, err := e.coord.ConfirmCashPayment(context.Background(), pending.ID, "agent-9"); !apperr.Is(err, apperr.KindInvalidStateTransition) {
		t.Errorf("PENDING order: expected invalid transition, got %v", err)
	}

	// gateway order cannot be cash-confirmed
	gw := e.createOrder(t, orders.PaymentGateway, orders.ItemInput{OfferingID: "off-x", Qty: 1})
	if _, err := e.coord.ConfirmCashPayment(context.Background(), gw.ID, "agent-9"); !apperr.Is(err, apperr.KindInvalidStateTransition) {
		t.Errorf("GATEWAY order: expected invalid transition, got %v", err)
	}

	if _, err := e.coord.ConfirmCashPayment(context.Background(), "missing", "agent-9"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown order: expected not found, got %v", err)
	}

	cod := e.createOrder(t, orders.PaymentCOD, orders.ItemInput{OfferingID: "off-x", Qty: 1})
	if _, err := e.coord.ConfirmCashPayment(context.Background(), cod.ID, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty confirming party: expected validation, got %v", err)
	}
}

func TestConfirmCashPaymentCreatesScheduleOnce(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentCOD, orders.ItemInput{OfferingID: "off-x", Qty: 1})

	if _, err := e.coord.ConfirmCashPayment(context.Background(), o.ID, "agent-9"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	first, _ := e.schedules.ByOrder(context.Background(), o.ID)

	// second confirm is rejected by the status guard, schedule stays the same
	if _, err := e.coord.ConfirmCashPayment(context.Background(), o.ID, "agent-10"); !apperr.Is(err, apperr.KindInvalidStateTransition) {
		t.Fatalf("expected invalid transition on re-confirm, got %v", err)
	}
	second, _ := e.schedules.ByOrder(context.Background(), o.ID)
	if first.ID != second.ID {
		t.Errorf("a second schedule appeared: %s != %s", first.ID, second.ID)
	}
}

func TestGatewayCallbackSuccess(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentGateway, orders.ItemInput{OfferingID: "off-x", Qty: 2})

	res, err := e.coord.ProcessGatewayCallback(context.Background(),
		e.signedCallback(o.ID, "tx-100", ResponseCodeSuccess, o.TotalCents))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !res.Applied || res.Status != orders.StatusConfirmed {
		t.Errorf("result = %+v, want applied CONFIRMED", res)
	}

	got, _ := e.orders.Get(context.Background(), o.ID)
	if got.GatewayTxID != "tx-100" {
		t.Errorf("gateway tx id = %q, want tx-100", got.GatewayTxID)
	}
	if got.PaymentConfirmedAt == nil {
		t.Error("PaymentConfirmedAt not set")
	}
	if _, err := e.schedules.ByOrder(context.Background(), o.ID); err != nil {
		t.Errorf("schedule not created: %v", err)
	}
}

func TestGatewayCallbackFailureRestoresStock(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-a", 6, 400)
	e.publishOffering(t, "off-b", 6, 1000)
	o := e.createOrder(t, orders.PaymentGateway,
		orders.ItemInput{OfferingID: "off-a", Qty: 2},
		orders.ItemInput{OfferingID: "off-b", Qty: 1},
	)
	if o.TotalCents != 1800 {
		t.Fatalf("total = %d, want 1800", o.TotalCents)
	}

	res, err := e.coord.ProcessGatewayCallback(context.Background(),
		e.signedCallback(o.ID, "tx-200", "51", o.TotalCents))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !res.Applied || res.Status != orders.StatusPaymentFailed {
		t.Errorf("result = %+v, want applied PAYMENT_FAILED", res)
	}

	a, _ := e.ledger.Offering(context.Background(), "off-a")
	b, _ := e.ledger.Offering(context.Background(), "off-b")
	if a.AvailableQty != 6 || b.AvailableQty != 6 {
		t.Errorf("stock not fully restored: a=%d b=%d, want 6/6", a.AvailableQty, b.AvailableQty)
	}
	if _, err := e.schedules.ByOrder(context.Background(), o.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("failed payment must not create a schedule, got %v", err)
	}
}

func TestGatewayCallbackSuccessReplayIsNoOp(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentGateway, orders.ItemInput{OfferingID: "off-x", Qty: 3})

	cb := e.signedCallback(o.ID, "tx-300", ResponseCodeSuccess, o.TotalCents)
	if _, err := e.coord.ProcessGatewayCallback(context.Background(), cb); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	res, err := e.coord.ProcessGatewayCallback(context.Background(), cb)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Applied {
		t.Error("replay must not be applied")
	}
	off, _ := e.ledger.Offering(context.Background(), "off-x")
	if off.AvailableQty != 7 {
		t.Errorf("replay touched stock: available = %d, want 7", off.AvailableQty)
	}
}

func TestGatewayCallbackFailureReplayDoesNotDoubleRelease(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentGateway, orders.ItemInput{OfferingID: "off-x", Qty: 4})

	cb := e.signedCallback(o.ID, "tx-400", "05", o.TotalCents)
	if _, err := e.coord.ProcessGatewayCallback(context.Background(), cb); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	res, err := e.coord.ProcessGatewayCallback(context.Background(), cb)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Applied || res.Status != orders.StatusPaymentFailed {
		t.Errorf("replay result = %+v, want unapplied PAYMENT_FAILED", res)
	}
	off, _ := e.ledger.Offering(context.Background(), "off-x")
	if off.AvailableQty != 10 {
		t.Errorf("stock after replay = %d, want exactly 10", off.AvailableQty)
	}
}

func TestGatewayCallbackInvalidSignature(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentGateway, orders.ItemInput{OfferingID: "off-x", Qty: 1})

	cb := e.signedCallback(o.ID, "tx-500", ResponseCodeSuccess, o.TotalCents)
	cb.Signature = "forged"
	if _, err := e.coord.ProcessGatewayCallback(context.Background(), cb); !apperr.Is(err, apperr.KindInvalidCallback) {
		t.Fatalf("expected invalid callback, got %v", err)
	}

	got, _ := e.orders.Get(context.Background(), o.ID)
	if got.Status != orders.StatusPendingPayment {
		t.Errorf("rejected callback changed status to %s", got.Status)
	}
}

func TestGatewayCallbackWrongMethod(t *testing.T) {
	e := newEnv(t)
	e.publishOffering(t, "off-x", 10, 500)
	o := e.createOrder(t, orders.PaymentCOD, orders.ItemInput{OfferingID: "off-x", Qty: 1})

	cb := e.signedCallback(o.ID, "tx-600", ResponseCodeSuccess, o.TotalCents)
	if _, err := e.coord.ProcessGatewayCallback(context.Background(), cb); !apperr.Is(err, apperr.KindInvalidStateTransition) {
		t.Fatalf("COD order: expected invalid transition, got %v", err)
	}
}
