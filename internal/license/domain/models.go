// Package domain contains persistence models for licenses and usage records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// License is the local mirror of a license grant held at the remote license
// server. Exactly one license belongs to an account.
type License struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	AccountID       snowflake.ID `gorm:"not null;uniqueIndex"`
	LicenseID       string       `gorm:"type:text;not null;uniqueIndex"`
	LicensePassword string       `gorm:"type:text;not null"`
	PublicPassword  string       `gorm:"type:text;not null"`
	PublicKey       string       `gorm:"type:text;not null"`
	IsActive        bool         `gorm:"not null;default:true"`
	IsBlocked       bool         `gorm:"not null;default:false"`
	CreationDate    time.Time    `gorm:"not null"`
	ExpirationDate  time.Time    `gorm:"not null"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (License) TableName() string { return "licenses" }

// UsageRecord is a monthly usage snapshot for a license, synced from the
// license server. Details maps a device identifier to its activation count.
// Unique per (license, year, month); syncs overwrite in place.
type UsageRecord struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	LicenseID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_usage_record_period,priority:1"`
	Year           int               `gorm:"not null;uniqueIndex:ux_usage_record_period,priority:2"`
	Month          int               `gorm:"not null;uniqueIndex:ux_usage_record_period,priority:3"`
	NumberLicenses int               `gorm:"not null"`
	Details        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// TotalUSD computes the record's billable amount at the given per-license rate.
func (r UsageRecord) TotalUSD(pricePerLicense float64) float64 {
	return float64(r.NumberLicenses) * pricePerLicense
}
