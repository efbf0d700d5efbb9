package menu

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

// Store is the Postgres ledger. Reserve locks the offering row (FOR UPDATE)
// before checking and decrementing stock, so concurrent reserves against the
// same offering serialize instead of racing past the floor check.
type Store struct{ DB *pgxpool.Pool }

var _ Ledger = (*Store)(nil)

func (s *Store) Reserve(ctx context.Context, orderID, offeringID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperr.Validationf("reserve quantity must be positive, got %d", qty)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var price, avail int
	err = tx.QueryRow(ctx,
		`SELECT price_cents, available_qty FROM menu_offerings WHERE id=$1 FOR UPDATE`,
		offeringID).Scan(&price, &avail)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("offering", offeringID)
	}
	if err != nil {
		return 0, err
	}
	if avail < qty {
		return 0, apperr.InsufficientStock(offeringID, qty, avail)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE menu_offerings SET available_qty = available_qty - $2, updated_at = now() WHERE id=$1`,
		offeringID, qty); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO menu_reservations(id, order_id, offering_id, qty, status)
		VALUES ($1,$2,$3,$4,'RESERVED')
		ON CONFLICT (order_id, offering_id)
		DO UPDATE SET qty = menu_reservations.qty + EXCLUDED.qty
	`, uuid.NewString(), orderID, offeringID, qty); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return price, nil
}

func (s *Store) Release(ctx context.Context, offeringID string, qty int) error {
	if qty < 0 {
		return apperr.Validationf("release quantity must not be negative, got %d", qty)
	}
	ct, err := s.DB.Exec(ctx,
		`UPDATE menu_offerings SET available_qty = available_qty + $2, updated_at = now() WHERE id=$1`,
		offeringID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("offering", offeringID)
	}
	return nil
}

// ReleaseOrder restores stock for the order's RESERVED records and flips them
// RELEASED inside one transaction: either the whole rollback lands or none of
// it does, and a replay finds no RESERVED rows left.
func (s *Store) ReleaseOrder(ctx context.Context, orderID string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT offering_id, qty FROM menu_reservations WHERE order_id=$1 AND status='RESERVED'`,
		orderID)
	if err != nil {
		return err
	}
	type rec struct {
		offeringID string
		qty        int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.offeringID, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx,
			`UPDATE menu_offerings SET available_qty = available_qty + $2, updated_at = now() WHERE id=$1`,
			x.offeringID, x.qty); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE menu_reservations SET status='RELEASED' WHERE order_id=$1 AND status='RESERVED'`,
		orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Offering(ctx context.Context, id string) (*Offering, error) {
	var o Offering
	err := s.DB.QueryRow(ctx, `
		SELECT id, menu_date, recipe_id, recipe_name, price_cents, available_qty, created_at, updated_at
		FROM menu_offerings WHERE id=$1`, id).
		Scan(&o.ID, &o.MenuDate, &o.RecipeID, &o.RecipeName, &o.PriceCents, &o.AvailableQty, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("offering", id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ByDate(ctx context.Context, day time.Time) ([]Offering, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, menu_date, recipe_id, recipe_name, price_cents, available_qty, created_at, updated_at
		FROM menu_offerings WHERE menu_date = $1::date ORDER BY recipe_name`,
		day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offering
	for rows.Next() {
		var o Offering
		if err := rows.Scan(&o.ID, &o.MenuDate, &o.RecipeID, &o.RecipeName, &o.PriceCents, &o.AvailableQty, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) Publish(ctx context.Context, o *Offering) error {
	if o.AvailableQty < 0 {
		return apperr.Validation("available quantity must not be negative")
	}
	if o.PriceCents < 0 {
		return apperr.Validation("price must not be negative")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO menu_offerings(id, menu_date, recipe_id, recipe_name, price_cents, available_qty)
		VALUES ($1,$2::date,$3,$4,$5,$6)`,
		o.ID, o.MenuDate.Format("2006-01-02"), o.RecipeID, o.RecipeName, o.PriceCents, o.AvailableQty)
	return err
}
