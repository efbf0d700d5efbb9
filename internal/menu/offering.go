// Package menu holds the sellable side of the daily menu: offerings with a
// finite stock, and the reservation ledger that backs order lines.
package menu

import (
	"context"
	"time"
)

// Offering is one recipe sold on one calendar day's menu. Stock is only ever
// mutated through the ledger's reserve/release operations.
type Offering struct {
	ID           string    `json:"id"`
	MenuDate     time.Time `json:"menu_date"`
	RecipeID     string    `json:"recipe_id"`
	RecipeName   string    `json:"recipe_name"`
	PriceCents   int       `json:"price_cents"`
	AvailableQty int       `json:"available_qty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (o Offering) SoldOut() bool { return o.AvailableQty == 0 }

type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationReleased ReservationStatus = "RELEASED"
)

// Reservation records the exact amount subtracted from an offering's stock for
// one order, so a rollback restores precisely what was taken and a replayed
// rollback restores nothing.
type Reservation struct {
	ID         string
	OrderID    string
	OfferingID string
	Qty        int
	Status     ReservationStatus
	CreatedAt  time.Time
}

// Ledger is the inventory reservation surface. Reserve and ReleaseOrder are
// atomic per call: two concurrent reserves can never jointly oversell an
// offering, and a released order's records cannot be released twice.
type Ledger interface {
	// Reserve subtracts qty from the offering's stock and records it against
	// orderID. Returns the offering's current unit price in cents, which the
	// caller captures for the order line. Fails with a not-found error for an
	// unknown offering and an insufficient-stock error when qty exceeds the
	// available quantity; stock is unchanged on failure.
	Reserve(ctx context.Context, orderID, offeringID string, qty int) (int, error)

	// Release puts qty units back without consulting reservation records.
	// Callers must not release more than they reserved; a non-negative qty on
	// an existing offering always succeeds.
	Release(ctx context.Context, offeringID string, qty int) error

	// ReleaseOrder restores stock for every RESERVED record of the order and
	// flips them to RELEASED in one atomic step. Calling it again is a no-op.
	ReleaseOrder(ctx context.Context, orderID string) error

	Offering(ctx context.Context, id string) (*Offering, error)
	ByDate(ctx context.Context, day time.Time) ([]Offering, error)

	// Publish makes an offering sellable; used when a day's menu goes live.
	Publish(ctx context.Context, o *Offering) error
}
