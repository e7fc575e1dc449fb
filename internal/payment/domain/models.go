// Package domain contains persistence models for invoices and card charges.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus represents invoice lifecycle states.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment is one billing period's invoice for an account and the record of
// its charge attempt. Amounts are USD; CreditsUsed is already subtracted in
// PaidAmount, which is what actually goes to the card.
type Payment struct {
	ID                 snowflake.ID      `gorm:"primaryKey"`
	AccountID          snowflake.ID      `gorm:"not null;index"`
	InvoiceID          string            `gorm:"type:text;not null;uniqueIndex"`
	ProcessorReference string            `gorm:"type:text"`
	Amount             float64           `gorm:"not null"`
	CreditsUsed        float64           `gorm:"not null;default:0"`
	Details            datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	Status             PaymentStatus     `gorm:"type:text;not null;default:'INITIATED'"`
	Retried            bool              `gorm:"not null;default:false"`
	Month              int               `gorm:"not null;index:ix_payments_period"`
	Year               int               `gorm:"not null;index:ix_payments_period"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// PaidAmount is the net amount due on the card after credits.
func (p Payment) PaidAmount() float64 {
	return p.Amount - p.CreditsUsed
}

// StripeCustomer links an account to its processor-side customer record.
type StripeCustomer struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	AccountID  snowflake.ID `gorm:"not null;uniqueIndex"`
	CustomerID string       `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StripeCustomer) TableName() string { return "stripe_customers" }

// StripeCard is a stored card reference on a processor customer.
type StripeCard struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	StripeCustomerID snowflake.ID `gorm:"not null;index"`
	CardID           string       `gorm:"type:text;not null;uniqueIndex"`
	IsPrimary        bool         `gorm:"not null;default:true"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StripeCard) TableName() string { return "stripe_cards" }
