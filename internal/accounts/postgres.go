package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TranNgocKhiet/meal-prep-service-sub000/internal/apperr"
)

type Store struct{ DB *pgxpool.Pool }

var _ Directory = (*Store)(nil)

func (s *Store) Put(ctx context.Context, a *Account) error {
	if a.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO accounts(id, full_name, phone, address, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET full_name=EXCLUDED.full_name,
			phone=EXCLUDED.phone, address=EXCLUDED.address`,
		a.ID, a.FullName, a.Phone, a.Address, a.CreatedAt)
	return err
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.DB.QueryRow(ctx, `SELECT 1 FROM accounts WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := s.DB.QueryRow(ctx,
		`SELECT id, full_name, phone, address, created_at FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.FullName, &a.Phone, &a.Address, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("account", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
