// Package domain contains persistence models for billing accounts.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account represents a billing customer, either a business or an individual.
type Account struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	BusinessName      string       `gorm:"type:text"`
	ContactFirstName  string       `gorm:"type:text;not null"`
	ContactLastName   string       `gorm:"type:text;not null"`
	ContactEmail      string       `gorm:"type:text;not null;uniqueIndex"`
	ContactPhone      string       `gorm:"type:text"`
	Address1          string       `gorm:"type:text"`
	Address2          string       `gorm:"type:text"`
	City              string       `gorm:"type:text"`
	State             string       `gorm:"type:text"`
	ZipCode           string       `gorm:"type:text"`
	Country           string       `gorm:"type:text"`
	PaymentOnPlatform bool         `gorm:"not null;default:true"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Name returns the business name, falling back to the contact's full name.
func (a Account) Name() string {
	if strings.TrimSpace(a.BusinessName) != "" {
		return a.BusinessName
	}
	return strings.TrimSpace(a.ContactFirstName + " " + a.ContactLastName)
}

// User is a billing administrator attached to an account. The IdPUUID links
// the user to the SCIM record provisioned at the identity provider.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	AccountID    snowflake.ID `gorm:"not null;index"`
	Email        string       `gorm:"type:text;not null;uniqueIndex"`
	FirstName    string       `gorm:"type:text;not null"`
	LastName     string       `gorm:"type:text;not null"`
	PhoneNumber  string       `gorm:"type:text"`
	PasswordHash string       `gorm:"type:text;not null"`
	IsActive     bool         `gorm:"not null;default:false"`
	IdPUUID      string       `gorm:"column:idp_uuid;type:text"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// FullName returns the user's display name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Activation holds a pending email-activation key for a user.
type Activation struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	UserID        snowflake.ID `gorm:"not null;uniqueIndex"`
	ActivationKey string       `gorm:"type:text;not null;index"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Activation) TableName() string { return "activations" }

// Credit is a prepaid balance applied against invoices before a card charge.
// RemainingAmount only ever decreases and never goes below zero.
type Credit struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	AccountID       snowflake.ID `gorm:"not null;index"`
	InitialAmount   float64      `gorm:"not null"`
	RemainingAmount float64      `gorm:"not null"`
	Expires         time.Time    `gorm:"not null"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Credit) TableName() string { return "credits" }

// IsExpired reports whether the credit can no longer be applied.
func (c Credit) IsExpired(now time.Time) bool {
	return !c.Expires.After(now)
}

// Usable reports whether the credit may offset an invoice right now.
func (c Credit) Usable(now time.Time) bool {
	return c.RemainingAmount > 0 && !c.IsExpired(now)
}
