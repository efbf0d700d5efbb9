package orders

import (
	"context"
	"errors"
	"time"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentGateway PaymentMethod = "GATEWAY"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCOD || m == PaymentGateway }

// Order owns its lines; their lifetime is bound to the order. TotalCents is
// persisted and must always equal the sum of the line totals.
type Order struct {
	ID                 string        `json:"id"`
	AccountID          string        `json:"account_id"`
	Status             Status        `json:"status"`
	PaymentMethod      PaymentMethod `json:"payment_method,omitempty"`
	TotalCents         int           `json:"total_cents"`
	DeliveryAddress    string        `json:"delivery_address"`
	DeliveryContact    string        `json:"delivery_contact"`
	DeliveryDate       time.Time     `json:"delivery_date"`
	PaymentConfirmedAt *time.Time    `json:"payment_confirmed_at,omitempty"`
	PaymentConfirmedBy string        `json:"payment_confirmed_by,omitempty"`
	GatewayTxID        string        `json:"gateway_tx_id,omitempty"`
	OrderedAt          time.Time     `json:"ordered_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	Lines              []Line        `json:"lines"`
}

// LineTotalCents sums the line totals in the same integer-cents representation
// the lines use, so the comparison against TotalCents is exact.
func (o *Order) LineTotalCents() int {
	sum := 0
	for _, l := range o.Lines {
		sum += l.TotalCents()
	}
	return sum
}

// Line captures the unit price at order-creation time; a later price change on
// the offering does not touch existing lines.
type Line struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	OfferingID string `json:"offering_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

func (l Line) TotalCents() int { return l.Qty * l.PriceCents }

type ItemInput struct {
	OfferingID string `json:"offering_id"`
	Qty        int    `json:"qty"`
}

type CreateRequest struct {
	AccountID       string      `json:"account_id"`
	DeliveryAddress string      `json:"delivery_address"`
	DeliveryContact string      `json:"delivery_contact"`
	DeliveryDate    time.Time   `json:"delivery_date"`
	Items           []ItemInput `json:"items"`
}

var ErrAlreadyExists = errors.New("order already exists")

// Store is the order persistence surface. Implementations return
// apperr.NotFound for unknown ids and ErrAlreadyExists on duplicate creates.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
}
