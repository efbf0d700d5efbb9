package delivery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

func (s *PGStore) Create(ctx context.Context, sched *Schedule) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO delivery_schedules(id, order_id, address, contact, deliver_at, courier, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sched.ID, sched.OrderID, sched.Address, sched.Contact, sched.DeliverAt,
		sched.Courier, sched.Status, sched.CreatedAt, sched.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on order_id
		return ErrDuplicateOrder
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Schedule, error) {
	sched, err := s.scanOne(ctx, `WHERE id=$1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule", id)
	}
	return sched, err
}

func (s *PGStore) ByOrder(ctx context.Context, orderID string) (*Schedule, error) {
	sched, err := s.scanOne(ctx, `WHERE order_id=$1`, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule for order", orderID)
	}
	return sched, err
}

func (s *PGStore) scanOne(ctx context.Context, where string, arg any) (*Schedule, error) {
	var sched Schedule
	err := s.DB.QueryRow(ctx, `
		SELECT id, order_id, address, contact, deliver_at, courier, status, created_at, updated_at
		FROM delivery_schedules `+where, arg).
		Scan(&sched.ID, &sched.OrderID, &sched.Address, &sched.Contact, &sched.DeliverAt,
			&sched.Courier, &sched.Status, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *PGStore) Update(ctx context.Context, sched *Schedule) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE delivery_schedules SET courier=$2, status=$3, updated_at=$4 WHERE id=$1`,
		sched.ID, sched.Courier, sched.Status, sched.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("schedule", sched.ID)
	}
	return nil
}
