package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/delivery"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/menu"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/payment"
)

type nopPub struct{}

func (nopPub) Publish(key, value []byte, headers ...kafkago.Header) {}

type dirFake struct{}

func (dirFake) Exists(ctx context.Context, id string) (bool, error) { return id == "acc-1", nil }

type testApp struct {
	srv       *httptest.Server
	ledger    *menu.MemoryLedger
	schedules *delivery.Service
	validator payment.HMACValidator
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ledger := menu.NewMemoryLedger()
	store := orders.NewMemoryStore()
	orderSvc := &orders.Service{
		Store:             store,
		Ledger:            ledger,
		Accounts:          dirFake{},
		ProducerCreated:   nopPub{},
		ProducerDelivered: nopPub{},
		ServiceName:       "test",
		Log:               zap.NewNop(),
	}
	schedSvc := &delivery.Service{
		Store:  delivery.NewMemoryStore(),
		Orders: orderSvc,
		Log:    zap.NewNop(),
	}
	validator := payment.HMACValidator{Secret: []byte("test-secret")}
	coord := &payment.Coordinator{
		Orders:            store,
		Ledger:            ledger,
		Scheduler:         schedSvc,
		Validator:         validator,
		ProducerConfirmed: nopPub{},
		ProducerFailed:    nopPub{},
		ServiceName:       "test",
		Log:               zap.NewNop(),
	}

	router := NewRouter()
	h := &Handler{
		Orders:    orderSvc,
		Payments:  coord,
		Menu:      ledger,
		Schedules: schedSvc,
		Log:       zap.NewNop(),
	}
	h.Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testApp{srv: srv, ledger: ledger, schedules: schedSvc, validator: validator}
}

func (a *testApp) publishOffering(t *testing.T, id string, qty, priceCents int) {
	t.Helper()
	err := a.ledger.Publish(context.Background(), &menu.Offering{
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

func (a *testApp) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(a.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(a.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func createReq(items ...orders.ItemInput) orders.CreateRequest {
	return orders.CreateRequest{
		AccountID:       "acc-1",
		DeliveryAddress: "12 Elm St",
		DeliveryContact: "555-0101",
		DeliveryDate:    time.Date(2025, 3, 11, 11, 0, 0, 0, time.UTC),
		Items:           items,
	}
}

func TestCODFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	app.publishOffering(t, "off-x", 10, 500)

	resp, body := app.post(t, "/orders", createReq(orders.ItemInput{OfferingID: "off-x", Qty: 3}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		OrderID    string `json:"order_id"`
		TotalCents int    `json:"total_cents"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.TotalCents != 1500 || created.Status != "PENDING" {
		t.Errorf("create response = %+v", created)
	}

	resp, body = app.post(t, "/orders/"+created.OrderID+"/payment", map[string]string{"method": "COD"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select method status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = app.post(t, "/orders/"+created.OrderID+"/payment/confirm", map[string]string{"confirmed_by": "agent-9"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", resp.StatusCode, body)
	}
	var confirmed orders.Order
	if err := json.Unmarshal(body, &confirmed); err != nil {
		t.Fatalf("decode confirm response: %v", err)
	}
	if confirmed.Status != orders.StatusConfirmed || confirmed.PaymentConfirmedBy != "agent-9" {
		t.Errorf("confirmed order = status %s, by %q", confirmed.Status, confirmed.PaymentConfirmedBy)
	}

	sched, err := app.schedules.ByOrder(context.Background(), created.OrderID)
	if err != nil {
		t.Fatalf("schedule not created: %v", err)
	}

	resp, body = app.post(t, "/schedules/"+sched.ID+"/complete", struct{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", resp.StatusCode, body)
	}

	_, body = app.get(t, "/orders/"+created.OrderID)
	var final orders.Order
	if err := json.Unmarshal(body, &final); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if final.Status != orders.StatusDelivered {
		t.Errorf("final status = %s, want DELIVERED", final.Status)
	}
}

func TestGatewayFailureFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	app.publishOffering(t, "off-a", 6, 400)
	app.publishOffering(t, "off-b", 6, 1000)

	_, body := app.post(t, "/orders", createReq(
		orders.ItemInput{OfferingID: "off-a", Qty: 2},
		orders.ItemInput{OfferingID: "off-b", Qty: 1},
	))
	var created struct {
		OrderID    string `json:"order_id"`
		TotalCents int    `json:"total_cents"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.TotalCents != 1800 {
		t.Fatalf("total = %d, want 1800", created.TotalCents)
	}

	app.post(t, "/orders/"+created.OrderID+"/payment", map[string]string{"method": "GATEWAY"})

	cb := payment.Callback{OrderID: created.OrderID, TransactionID: "tx-9", ResponseCode: "51", AmountCents: created.TotalCents}
	cb.Signature = app.validator.Sign(cb)
	resp, body := app.post(t, "/payments/gateway/callback", cb)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d, body %s", resp.StatusCode, body)
	}
	var res payment.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Status != orders.StatusPaymentFailed {
		t.Errorf("result status = %s, want PAYMENT_FAILED", res.Status)
	}

	a, _ := app.ledger.Offering(context.Background(), "off-a")
	b, _ := app.ledger.Offering(context.Background(), "off-b")
	if a.AvailableQty != 6 || b.AvailableQty != 6 {
		t.Errorf("stock not restored: a=%d b=%d", a.AvailableQty, b.AvailableQty)
	}

	// replay answers 200 without re-applying
	resp, body = app.post(t, "/payments/gateway/callback", cb)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, body %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode replay result: %v", err)
	}
	if res.Applied {
		t.Error("replay must not be applied")
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	app := newTestApp(t)
	app.publishOffering(t, "off-x", 5, 500)

	cases := []struct {
		name string
		do   func(t *testing.T) int
		want int
	}{
		{"unknown order", func(t *testing.T) int {
			resp, _ := app.get(t, "/orders/missing")
			return resp.StatusCode
		}, http.StatusNotFound},
		{"insufficient stock", func(t *testing.T) int {
			resp, _ := app.post(t, "/orders", createReq(orders.ItemInput{OfferingID: "off-x", Qty: 8}))
			return resp.StatusCode
		}, http.StatusConflict},
		{"empty items", func(t *testing.T) int {
			resp, _ := app.post(t, "/orders", createReq())
			return resp.StatusCode
		}, http.StatusBadRequest},
		{"bad payment method", func(t *testing.T) int {
			_, body := app.post(t, "/orders", createReq(orders.ItemInput{OfferingID: "off-x", Qty: 1}))
			var created struct {
				OrderID string `json:"order_id"`
			}
			if err := json.Unmarshal(body, &created); err != nil {
				t.Fatalf("decode: %v", err)
			}
			resp, _ := app.post(t, fmt.Sprintf("/orders/%s/payment", created.OrderID), map[string]string{"method": ""})
			return resp.StatusCode
		}, http.StatusBadRequest},
		{"forged callback", func(t *testing.T) int {
			resp, _ := app.post(t, "/payments/gateway/callback",
				payment.Callback{OrderID: "o", TransactionID: "t", ResponseCode: "00", Signature: "forged"})
			return resp.StatusCode
		}, http.StatusBadRequest},
		{"bad menu date", func(t *testing.T) int {
			resp, _ := app.get(t, "/menu?date=not-a-date")
			return resp.StatusCode
		}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.do(t); got != c.want {
				t.Errorf("status = %d, want %d", got, c.want)
			}
		})
	}
}

func TestMenuEndpointMarksSoldOut(t *testing.T) {
	app := newTestApp(t)
	app.publishOffering(t, "off-gone", 0, 500)
	app.publishOffering(t, "off-live", 3, 700)

	resp, body := app.get(t, "/menu?date=2025-03-10")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("menu status = %d", resp.StatusCode)
	}
	var items []struct {
		ID      string `json:"id"`
		SoldOut bool   `json:"sold_out"`
	}
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("decode menu: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 offerings, got %d", len(items))
	}
	for _, it := range items {
		wantSoldOut := it.ID == "off-gone"
		if it.SoldOut != wantSoldOut {
			t.Errorf("offering %s sold_out = %v, want %v", it.ID, it.SoldOut, wantSoldOut)
		}
	}
}
