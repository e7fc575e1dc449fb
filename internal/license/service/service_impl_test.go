package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	licenseservice "github.com/gluufederation/ecommerce/internal/license/service"
)

type connectorStub struct {
	grant    *licensedomain.Grant
	stats    map[string]licensedomain.PeriodStat
	statsErr error

	metadataCalls int
	metadataErr   error
}

func (c *connectorStub) GenerateLicense(context.Context, string) (*licensedomain.Grant, error) {
	if c.grant == nil {
		return nil, licensedomain.ErrRemote
	}
	return c.grant, nil
}

func (c *connectorStub) UpdateMetadata(context.Context, licensedomain.License, string) error {
	c.metadataCalls++
	return c.metadataErr
}

func (c *connectorStub) MonthlyStatistics(context.Context, string) (map[string]licensedomain.PeriodStat, error) {
	if c.statsErr != nil {
		return nil, c.statsErr
	}
	return c.stats, nil
}

func setupLicenseService(t *testing.T, connector *connectorStub) (licensedomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&licensedomain.License{}, &licensedomain.UsageRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := licenseservice.NewService(licenseservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Connector: connector,
	})
	return svc, db, node
}

func seedLicense(t *testing.T, db *gorm.DB, node *snowflake.Node) *licensedomain.License {
	t.Helper()

	license := &licensedomain.License{
		ID:             node.Generate(),
		AccountID:      node.Generate(),
		LicenseID:      "lic-" + t.Name(),
		IsActive:       true,
		CreationDate:   time.Now().UTC(),
		ExpirationDate: time.Now().UTC().AddDate(1, 0, 0),
	}
	if err := db.Create(license).Error; err != nil {
		t.Fatalf("seed license: %v", err)
	}
	return license
}

func TestSyncUpsertsOneRecordPerPeriod(t *testing.T) {
	ctx := context.Background()
	connector := &connectorStub{
		stats: map[string]licensedomain.PeriodStat{
			"2023-3": {
				LicenseGeneratedCount: 7,
				MacAddresses:          map[string]int{"aa:bb:cc:dd:ee:ff": 7},
			},
			"2023-4": {
				LicenseGeneratedCount: 2,
				MacAddresses:          map[string]int{"11:22:33:44:55:66": 2},
			},
		},
	}
	svc, db, node := setupLicenseService(t, connector)
	license := seedLicense(t, db, node)

	if err := svc.Sync(ctx, license); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if err := svc.Sync(ctx, license); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	var count int64
	if err := db.Model(&licensedomain.UsageRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 records after repeated sync, got %d", count)
	}

	record, err := svc.RecordForPeriod(ctx, license, 3, 2023)
	if err != nil {
		t.Fatalf("record for period: %v", err)
	}
	if record == nil || record.NumberLicenses != 7 {
		t.Fatalf("expected March record with 7 licenses, got %+v", record)
	}
}

func TestSyncOverwritesChangedCounts(t *testing.T) {
	ctx := context.Background()
	connector := &connectorStub{
		stats: map[string]licensedomain.PeriodStat{
			"2023-3": {LicenseGeneratedCount: 5, MacAddresses: map[string]int{"aa:bb:cc:dd:ee:ff": 5}},
		},
	}
	svc, db, node := setupLicenseService(t, connector)
	license := seedLicense(t, db, node)

	if err := svc.Sync(ctx, license); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	connector.stats["2023-3"] = licensedomain.PeriodStat{
		LicenseGeneratedCount: 9,
		MacAddresses:          map[string]int{"aa:bb:cc:dd:ee:ff": 9},
	}
	if err := svc.Sync(ctx, license); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	record, err := svc.RecordForPeriod(ctx, license, 3, 2023)
	if err != nil {
		t.Fatalf("record for period: %v", err)
	}
	if record == nil || record.NumberLicenses != 9 {
		t.Fatalf("expected updated count 9, got %+v", record)
	}
}

func TestSyncSkipsMalformedPeriods(t *testing.T) {
	ctx := context.Background()
	connector := &connectorStub{
		stats: map[string]licensedomain.PeriodStat{
			"2023-3":    {LicenseGeneratedCount: 5},
			"not-a-key": {LicenseGeneratedCount: 99},
			"2023-13":   {LicenseGeneratedCount: 1},
		},
	}
	svc, db, node := setupLicenseService(t, connector)
	license := seedLicense(t, db, node)

	if err := svc.Sync(ctx, license); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var count int64
	if err := db.Model(&licensedomain.UsageRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the valid period stored, got %d records", count)
	}
}

func TestSyncNoRemoteDataIsNoOp(t *testing.T) {
	ctx := context.Background()
	connector := &connectorStub{statsErr: licensedomain.ErrNoUsageData}
	svc, db, node := setupLicenseService(t, connector)
	license := seedLicense(t, db, node)

	if err := svc.Sync(ctx, license); err != nil {
		t.Fatalf("expected recoverable no-op, got %v", err)
	}

	var count int64
	if err := db.Model(&licensedomain.UsageRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no records, got %d", count)
	}
}

func TestDeactivatePersistsLocallyWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	connector := &connectorStub{metadataErr: errors.New("license server down")}
	svc, db, node := setupLicenseService(t, connector)
	license := seedLicense(t, db, node)

	if err := svc.Deactivate(ctx, license, "Acme Identity"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if connector.metadataCalls != 1 {
		t.Fatalf("expected remote update attempt, got %d", connector.metadataCalls)
	}

	var stored licensedomain.License
	if err := db.First(&stored, "id = ?", license.ID).Error; err != nil {
		t.Fatalf("load license: %v", err)
	}
	if stored.IsActive || !stored.IsBlocked {
		t.Fatalf("expected inactive and blocked, got active=%v blocked=%v", stored.IsActive, stored.IsBlocked)
	}
}

func TestAcquireStoresLocalMirror(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	connector := &connectorStub{
		grant: &licensedomain.Grant{
			LicenseID:       "lic-remote",
			LicensePassword: "secret",
			PublicPassword:  "public",
			PublicKey:       "key",
			CreationDate:    now,
			ExpirationDate:  now.AddDate(0, 0, 365),
		},
	}
	svc, db, node := setupLicenseService(t, connector)
	_ = node

	license, err := svc.Acquire(ctx, 42, "Acme Identity")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if license.LicenseID != "lic-remote" || !license.IsActive {
		t.Fatalf("unexpected license %+v", license)
	}

	var count int64
	if err := db.Model(&licensedomain.License{}).Count(&count).Error; err != nil {
		t.Fatalf("count licenses: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected stored license, got %d rows", count)
	}
}
