// Package accounts is the thin directory of ordering accounts. The order
// workflow only needs to know whether an account exists; profile management
// lives elsewhere.
package accounts

import (
	"context"
	"time"
)

type Account struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*Account, error)
	Put(ctx context.Context, a *Account) error
}
