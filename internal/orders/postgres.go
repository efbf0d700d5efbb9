package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

// PGStore persists orders and their lines. Create writes the order row and
// every line row inside one transaction so no half-written order is readable.
type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders(id, account_id, status, payment_method, total_cents,
			delivery_address, delivery_contact, delivery_date,
			payment_confirmed_at, payment_confirmed_by, gateway_tx_id,
			ordered_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.AccountID, o.Status, o.PaymentMethod, o.TotalCents,
		o.DeliveryAddress, o.DeliveryContact, o.DeliveryDate,
		o.PaymentConfirmedAt, o.PaymentConfirmedBy, o.GatewayTxID,
		o.OrderedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyExists
	}

	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, offering_id, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			l.ID, l.OrderID, l.OfferingID, l.Qty, l.PriceCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, account_id, status, payment_method, total_cents,
			delivery_address, delivery_contact, delivery_date,
			payment_confirmed_at, payment_confirmed_by, gateway_tx_id,
			ordered_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.AccountID, &o.Status, &o.PaymentMethod, &o.TotalCents,
			&o.DeliveryAddress, &o.DeliveryContact, &o.DeliveryDate,
			&o.PaymentConfirmedAt, &o.PaymentConfirmedBy, &o.GatewayTxID,
			&o.OrderedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, offering_id, qty, price_cents
		FROM order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.OfferingID, &l.Qty, &l.PriceCents); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// Update rewrites the order row only. Lines are immutable after creation, so
// they are never touched here.
func (s *PGStore) Update(ctx context.Context, o *Order) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET status=$2, payment_method=$3,
			payment_confirmed_at=$4, payment_confirmed_by=$5,
			gateway_tx_id=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, o.Status, o.PaymentMethod,
		o.PaymentConfirmedAt, o.PaymentConfirmedBy,
		o.GatewayTxID, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("order", o.ID)
	}
	return nil
}
