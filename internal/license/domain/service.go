package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoUsageData is returned when the license server has no statistics
	// for a license. Callers treat this as a recoverable no-op.
	ErrNoUsageData = errors.New("license: no usage data")
	ErrRemote      = errors.New("license: license server error")
	ErrNotFound    = errors.New("license: not found")
)

// Grant is the license material returned by the license server when a new
// license is generated.
type Grant struct {
	LicenseID       string
	LicensePassword string
	PublicPassword  string
	PublicKey       string
	CreationDate    time.Time
	ExpirationDate  time.Time
}

// PeriodStat is one month of remote usage, keyed by "YYYY-M" at the wire level.
type PeriodStat struct {
	LicenseGeneratedCount int            `json:"license_generated_count"`
	MacAddresses          map[string]int `json:"mac_address"`
}

// Connector is the client-side contract against the remote license server.
type Connector interface {
	GenerateLicense(ctx context.Context, name string) (*Grant, error)
	UpdateMetadata(ctx context.Context, license License, accountName string) error
	MonthlyStatistics(ctx context.Context, licenseID string) (map[string]PeriodStat, error)
}

// Service manages local licenses and their usage records.
type Service interface {
	// Acquire generates a remote license and stores the local mirror.
	Acquire(ctx context.Context, accountID int64, name string) (*License, error)
	// Sync upserts one usage record per remote statistics period. A license
	// with no remote data is a recoverable no-op, not an error.
	Sync(ctx context.Context, license *License) error
	// Deactivate marks the license inactive and blocked, locally and remotely.
	Deactivate(ctx context.Context, license *License, accountName string) error
	// GetByAccount loads the account's license, or nil when it has none.
	GetByAccount(ctx context.Context, accountID int64) (*License, error)
	// RecordForPeriod loads the usage record for one period, or nil.
	RecordForPeriod(ctx context.Context, license *License, month, year int) (*UsageRecord, error)
	// Records lists all usage records for a license, newest period first.
	Records(ctx context.Context, license *License) ([]*UsageRecord, error)
}
