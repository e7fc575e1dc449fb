package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
)

// MockConnector stands in for the license server in development and tests.
// Enabled via MOCK_LICENSE.
type MockConnector struct{}

func NewMock() *MockConnector {
	return &MockConnector{}
}

func (m *MockConnector) GenerateLicense(ctx context.Context, name string) (*licensedomain.Grant, error) {
	_ = ctx
	_ = name
	now := time.Now().UTC()
	return &licensedomain.Grant{
		LicenseID:       fmt.Sprintf("0334bbcb-4121-4e23-a279-%s", randomHex(6)),
		LicensePassword: randomHex(10),
		PublicPassword:  randomHex(10),
		PublicKey:       randomHex(64),
		CreationDate:    now,
		ExpirationDate:  now.AddDate(0, 0, licenseTermDays),
	}, nil
}

func (m *MockConnector) UpdateMetadata(ctx context.Context, license licensedomain.License, accountName string) error {
	_ = ctx
	_ = license
	_ = accountName
	return nil
}

func (m *MockConnector) MonthlyStatistics(ctx context.Context, licenseID string) (map[string]licensedomain.PeriodStat, error) {
	_ = ctx
	_ = licenseID
	return map[string]licensedomain.PeriodStat{
		"2016-10": {
			LicenseGeneratedCount: 51,
			MacAddresses:          map[string]int{"unknown": 29, "00-50-56-C0-00-08": 22},
		},
		"2016-11": {
			LicenseGeneratedCount: 28,
			MacAddresses: map[string]int{
				"4C-BB-58-2C-B4-0F": 3,
				"unknown":           17,
				"00-50-56-C0-00-08": 8,
			},
		},
		"2016-9": {
			LicenseGeneratedCount: 2,
			MacAddresses:          map[string]int{"00-50-56-C0-00-08": 2},
		},
	}, nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
