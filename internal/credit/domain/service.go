// Package domain defines the credit ledger contract.
package domain

import (
	"context"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"gorm.io/gorm"
)

// Service applies prepaid credits against invoice amounts.
type Service interface {
	// Apply consumes at most one usable credit against amountDue and returns
	// the amount consumed. Zero usable credits consume nothing. More than one
	// usable credit is treated as an anomaly: nothing is consumed and the
	// condition is logged, leaving the books untouched for manual review.
	Apply(ctx context.Context, tx *gorm.DB, account *accountdomain.Account, amountDue float64) (float64, error)

	// Grant creates a new credit for the account.
	Grant(ctx context.Context, accountID int64, amount float64) (*accountdomain.Credit, error)

	// Remaining sums the usable balance across the account's credits.
	Remaining(ctx context.Context, accountID int64) (float64, error)
}
