package domain

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("account: not found")

// Service exposes account lookups used by the portal and the billing jobs.
type Service interface {
	Get(ctx context.Context, accountID int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	// Billable lists all accounts charged on this platform. Off-platform
	// accounts are excluded from every billing job.
	Billable(ctx context.Context) ([]*Account, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, account *Account) error
}
