// Package client implements the REST connector against the remote license
// server. Every write endpoint is UMA protected: an unauthenticated probe
// yields a 403 carrying a permission ticket, which is exchanged for an
// authorized RPT before the real request is sent.
package client

import (
	"context"
	"fmt"
	"time"

	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/uma"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	productName       = "oxd"
	licenseCountLimit = 9999
	licenseTermDays   = 365
	requestTimeout    = 30 * time.Second
)

type Client struct {
	http   *resty.Client
	tokens uma.TokenSource
	cfg    config.Config
	log    *zap.Logger
}

func New(cfg config.Config, tokens uma.TokenSource, log *zap.Logger) *Client {
	return &Client{
		http:   resty.New().SetTimeout(requestTimeout),
		tokens: tokens,
		cfg:    cfg,
		log:    log.Named("license.client"),
	}
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

type grantResponse struct {
	LicenseID       string `json:"license_id"`
	LicensePassword string `json:"license_password"`
	PublicPassword  string `json:"public_password"`
	PublicKey       string `json:"public_key"`
}

type statisticsResponse struct {
	MonthlyStatistic       map[string]licensedomain.PeriodStat `json:"monthly_statistic"`
	TotalGeneratedLicenses int                                 `json:"total_generated_licenses"`
}

// ticketFor probes url with the given verb and extracts the permission ticket
// from the expected 403 response.
func (c *Client) ticketFor(ctx context.Context, method, url string) (string, error) {
	var body ticketResponse
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetResult(&body).
		ForceContentType("application/json")

	resp, err := req.Execute(method, url)
	if err != nil {
		return "", fmt.Errorf("license: obtain ticket: %w", err)
	}
	if resp.StatusCode() != 403 || body.Ticket == "" {
		c.log.Error("failed to obtain ticket for UMA authentication",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", licensedomain.ErrRemote
	}
	return body.Ticket, nil
}

func (c *Client) GenerateLicense(ctx context.Context, name string) (*licensedomain.Grant, error) {
	url := c.cfg.LicenseGenerateEndpoint + "/1"

	ticket, err := c.ticketFor(ctx, resty.MethodPost, url)
	if err != nil {
		return nil, err
	}
	rpt, err := c.tokens.AcquireTokenForTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}

	creation := time.Now().UTC()
	expiration := creation.AddDate(0, 0, licenseTermDays)

	var grants []grantResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(rpt).
		SetBody(map[string]any{
			"active":              true,
			"product":             productName,
			"license_name":        name,
			"customer_name":       name,
			"creation_date":       toMilliseconds(creation),
			"expiration_date":     toMilliseconds(expiration),
			"license_count_limit": licenseCountLimit,
		}).
		SetResult(&grants).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("license: generate: %w", err)
	}
	if resp.StatusCode() != 200 || len(grants) == 0 {
		c.log.Error("error creating license",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return nil, licensedomain.ErrRemote
	}

	g := grants[0]
	return &licensedomain.Grant{
		LicenseID:       g.LicenseID,
		LicensePassword: g.LicensePassword,
		PublicPassword:  g.PublicPassword,
		PublicKey:       g.PublicKey,
		CreationDate:    creation,
		ExpirationDate:  expiration,
	}, nil
}

func (c *Client) UpdateMetadata(ctx context.Context, license licensedomain.License, accountName string) error {
	url := c.cfg.LicenseMetadataEndpoint

	ticket, err := c.ticketFor(ctx, resty.MethodPut, url)
	if err != nil {
		return err
	}
	rpt, err := c.tokens.AcquireTokenForTicket(ctx, ticket)
	if err != nil {
		return err
	}

	// unchanged metadata must be echoed back alongside the active flag
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(rpt).
		SetBody(map[string]any{
			"active":              license.IsActive,
			"license_id":          license.LicenseID,
			"product":             productName,
			"license_name":        accountName,
			"license_count_limit": licenseCountLimit,
			"creation_date":       toMilliseconds(license.CreationDate),
			"expiration_date":     toMilliseconds(license.ExpirationDate),
		}).
		Put(url)
	if err != nil {
		return fmt.Errorf("license: update metadata: %w", err)
	}
	if resp.StatusCode() != 200 {
		c.log.Error("error updating license",
			zap.String("license_id", license.LicenseID),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return licensedomain.ErrRemote
	}
	return nil
}

func (c *Client) MonthlyStatistics(ctx context.Context, licenseID string) (map[string]licensedomain.PeriodStat, error) {
	var body statisticsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("licenseId", licenseID).
		SetResult(&body).
		Get(c.cfg.LicenseStatisticsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("license: statistics: %w", err)
	}
	if resp.StatusCode() != 200 {
		c.log.Error("error retrieving usage statistics",
			zap.String("license_id", licenseID),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return nil, licensedomain.ErrRemote
	}
	if len(body.MonthlyStatistic) == 0 {
		return nil, licensedomain.ErrNoUsageData
	}
	return body.MonthlyStatistic, nil
}

func toMilliseconds(t time.Time) int64 {
	return t.UnixMilli()
}
