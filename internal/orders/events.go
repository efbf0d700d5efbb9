package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventPaymentConfirmed = "PaymentConfirmed"
	EventPaymentFailed    = "PaymentFailed"
	EventOrderDelivered   = "OrderDelivered"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "mealprep-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload types per event ----

type LinePayload struct {
	OfferingID string `json:"offering_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID      string        `json:"order_id"`
	AccountID    string        `json:"account_id"`
	Items        []LinePayload `json:"items"`
	TotalCents   int           `json:"total_cents"`
	DeliveryDate time.Time     `json:"delivery_date"`
}

type PaymentConfirmedPayload struct {
	OrderID     string `json:"order_id"`
	Method      string `json:"method"` // COD | GATEWAY
	GatewayTxID string `json:"gateway_tx_id,omitempty"`
	ConfirmedBy string `json:"confirmed_by,omitempty"`
	ScheduleID  string `json:"schedule_id"`
	AmountCents int    `json:"amount_cents"`
}

type PaymentFailedPayload struct {
	OrderID      string `json:"order_id"`
	Method       string `json:"method"`
	ResponseCode string `json:"response_code"`
	Reason       string `json:"reason"` // e.g., GATEWAY_DECLINED
}

type OrderDeliveredPayload struct {
	OrderID    string `json:"order_id"`
	ScheduleID string `json:"schedule_id,omitempty"`
}

func LinePayloads(lines []Line) []LinePayload {
	out := make([]LinePayload, 0, len(lines))
	for _, l := range lines {
		out = append(out, LinePayload{OfferingID: l.OfferingID, Qty: l.Qty, PriceCents: l.PriceCents})
	}
	return out
}
