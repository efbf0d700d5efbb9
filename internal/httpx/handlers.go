package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/delivery"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/menu"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/orders"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/payment"
	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/redisx"
)

// Handler wires the order workflow to HTTP. Redis is an optional status cache
// and callback dedup fast path; nil disables both.
type Handler struct {
	Orders    *orders.Service
	Payments  *payment.Coordinator
	Menu      menu.Ledger
	Schedules *delivery.Service
	Redis     *redis.Client
	Log       *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/payment", h.selectPaymentMethod)
	r.Post("/orders/{id}/payment/confirm", h.confirmCashPayment)
	r.Post("/payments/gateway/callback", h.gatewayCallback)
	r.Get("/menu", h.listMenu)
	r.Post("/schedules/{id}/complete", h.completeSchedule)
}

type createOrderResp struct {
	OrderID    string        `json:"order_id"`
	TotalCents int           `json:"total_cents"`
	Status     orders.Status `json:"status"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Create(ctx, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, createOrderResp{OrderID: o.ID, TotalCents: o.TotalCents, Status: o.Status})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// status cache fast path
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) selectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.SelectPaymentMethod(ctx, orderID, orders.PaymentMethod(req.Method))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateStatus(ctx, orderID)
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) confirmCashPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		ConfirmedBy string `json:"confirmed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Payments.ConfirmCashPayment(ctx, orderID, req.ConfirmedBy)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateStatus(ctx, orderID)
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	var cb payment.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// seen-marker is only a fast path; the coordinator's status guard is the
	// real idempotency gate
	if h.Redis != nil && cb.TransactionID != "" {
		key := fmt.Sprintf(redisx.KeyGatewayTx, cb.TransactionID)
		if first, err := redisx.MarkOnce(ctx, h.Redis, key, redisx.TTLGatewayTx); err == nil && !first {
			h.Log.Info("gateway callback replayed", zap.String("tx_id", cb.TransactionID))
		}
	}

	res, err := h.Payments.ProcessGatewayCallback(ctx, cb)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateStatus(ctx, res.OrderID)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	day := time.Now().UTC()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	offs, err := h.Menu.ByDate(ctx, day)
	if err != nil {
		writeErr(w, err)
		return
	}
	type item struct {
		menu.Offering
		SoldOut bool `json:"sold_out"`
	}
	out := make([]item, 0, len(offs))
	for _, o := range offs {
		out = append(out, item{Offering: o, SoldOut: o.SoldOut()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) completeSchedule(w http.ResponseWriter, r *http.Request) {
	schedID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sched, err := h.Schedules.Complete(ctx, schedID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateStatus(ctx, sched.OrderID)
	writeJSON(w, http.StatusOK, sched)
}

func (h *Handler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(o)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *Handler) invalidateStatus(ctx context.Context, orderID string) {
	if h.Redis == nil || orderID == "" {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
