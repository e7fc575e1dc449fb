package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/pkg/db/option"
	"github.com/gluufederation/ecommerce/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Connector licensedomain.Connector
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	connector  licensedomain.Connector
	licenses   repository.Repository[licensedomain.License]
	records    repository.Repository[licensedomain.UsageRecord]
}

func NewService(p ServiceParam) licensedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("license.service"),

		genID:     p.GenID,
		connector: p.Connector,
		licenses:  repository.ProvideStore[licensedomain.License](p.DB),
		records:   repository.ProvideStore[licensedomain.UsageRecord](p.DB),
	}
}

func (s *Service) Acquire(ctx context.Context, accountID int64, name string) (*licensedomain.License, error) {
	grant, err := s.connector.GenerateLicense(ctx, name)
	if err != nil {
		return nil, err
	}

	license := &licensedomain.License{
		ID:              s.genID.Generate(),
		AccountID:       snowflake.ID(accountID),
		LicenseID:       grant.LicenseID,
		LicensePassword: grant.LicensePassword,
		PublicPassword:  grant.PublicPassword,
		PublicKey:       grant.PublicKey,
		IsActive:        true,
		CreationDate:    grant.CreationDate,
		ExpirationDate:  grant.ExpirationDate,
	}
	if err := s.licenses.Create(ctx, license); err != nil {
		return nil, err
	}
	s.log.Info("license acquired",
		zap.String("license_id", license.LicenseID),
		zap.Int64("account_id", accountID),
	)
	return license, nil
}

// Sync pulls the remote monthly statistics and upserts one usage record per
// period. Re-running with identical remote data changes nothing.
func (s *Service) Sync(ctx context.Context, license *licensedomain.License) error {
	stats, err := s.connector.MonthlyStatistics(ctx, license.LicenseID)
	if err != nil {
		if errors.Is(err, licensedomain.ErrNoUsageData) {
			s.log.Info("no usage data for license", zap.String("license_id", license.LicenseID))
			return nil
		}
		return err
	}

	for period, stat := range stats {
		year, month, err := parsePeriod(period)
		if err != nil {
			s.log.Warn("skipping malformed statistics period",
				zap.String("period", period),
				zap.Error(err),
			)
			continue
		}

		details := datatypes.JSONMap{}
		for mac, count := range stat.MacAddresses {
			details[mac] = count
		}

		existing, err := s.records.FindOne(ctx, &licensedomain.UsageRecord{
			LicenseID: license.ID,
			Year:      year,
			Month:     month,
		})
		if err != nil {
			return err
		}

		if existing != nil {
			existing.NumberLicenses = stat.LicenseGeneratedCount
			existing.Details = details
			if err := s.records.BatchUpdate(ctx, []*licensedomain.UsageRecord{existing}); err != nil {
				return err
			}
			continue
		}

		record := &licensedomain.UsageRecord{
			ID:             s.genID.Generate(),
			LicenseID:      license.ID,
			Year:           year,
			Month:          month,
			NumberLicenses: stat.LicenseGeneratedCount,
			Details:        details,
		}
		if err := s.records.Create(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Deactivate(ctx context.Context, license *licensedomain.License, accountName string) error {
	license.IsActive = false
	license.IsBlocked = true

	if err := s.connector.UpdateMetadata(ctx, *license, accountName); err != nil {
		// local state still flips so the next remote sync can reconcile
		s.log.Error("failed to propagate license deactivation",
			zap.String("license_id", license.LicenseID),
			zap.Error(err),
		)
	}

	return s.licenses.Update(ctx, license.ID.String(), map[string]any{
		"is_active":  false,
		"is_blocked": true,
	})
}

func (s *Service) GetByAccount(ctx context.Context, accountID int64) (*licensedomain.License, error) {
	return s.licenses.FindOne(ctx, &licensedomain.License{AccountID: snowflake.ID(accountID)})
}

func (s *Service) RecordForPeriod(ctx context.Context, license *licensedomain.License, month, year int) (*licensedomain.UsageRecord, error) {
	return s.records.FindOne(ctx, &licensedomain.UsageRecord{
		LicenseID: license.ID,
		Month:     month,
		Year:      year,
	})
}

func (s *Service) Records(ctx context.Context, license *licensedomain.License) ([]*licensedomain.UsageRecord, error) {
	return s.records.Find(ctx, &licensedomain.UsageRecord{LicenseID: license.ID},
		option.OrderBy("year DESC, month DESC"))
}

// parsePeriod splits the license server's "YYYY-M" period key.
func parsePeriod(period string) (year, month int, err error) {
	parts := strings.SplitN(period, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed period %q", period)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed period year %q", period)
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed period month %q", period)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("period month out of range %q", period)
	}
	return year, month, nil
}
