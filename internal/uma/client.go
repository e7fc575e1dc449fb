// Package uma implements the UMA authorization handshake used to obtain
// bearer credentials for the identity provider and the license server.
// The flow is: client-credentials AAT -> fresh RPT -> resource ticket ->
// authorized RPT usable as a bearer token against the protected resource.
package uma

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrTokenDenied  = errors.New("uma: token request denied")
	ErrNoTicket     = errors.New("uma: resource did not issue a ticket")
	ErrNotProtected = errors.New("uma: resource is not UMA protected")
)

// TokenSource mints authorized RPT tokens for protected resources.
type TokenSource interface {
	// AcquireToken performs the full handshake against resourceURI.
	AcquireToken(ctx context.Context, resourceURI string) (string, error)
	// AcquireTokenForTicket skips ticket discovery when the caller already
	// holds a ticket from a 403 response.
	AcquireTokenForTicket(ctx context.Context, ticket string) (string, error)
}

type Client struct {
	http *resty.Client
	log  *zap.Logger
	cfg  config.Config

	mu         sync.Mutex
	aat        string
	aatExpires time.Time
}

const requestTimeout = 30 * time.Second

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		http: resty.New().SetTimeout(requestTimeout),
		cfg:  cfg,
		log:  log.Named("uma.client"),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
	ExpiresIn   int    `json:"expires_in"`
}

type rptResponse struct {
	RPT string `json:"rpt"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

// obtainAAT fetches (or reuses) the client-credentials access token with the
// uma_authorization scope.
func (c *Client) obtainAAT(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.aat != "" && time.Now().Before(c.aatExpires) {
		return c.aat, nil
	}

	var body tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.cfg.UMAClientID,
			"client_secret": c.cfg.UMAClientSecret,
			"grant_type":    "client_credentials",
			"scope":         "uma_authorization",
		}).
		SetResult(&body).
		Post(c.cfg.UMATokenEndpoint)
	if err != nil {
		return "", fmt.Errorf("uma: obtain aat: %w", err)
	}
	if resp.StatusCode() != 200 || body.Scope != "uma_authorization" {
		c.log.Error("failed to obtain AAT",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", ErrTokenDenied
	}

	c.aat = body.AccessToken
	// refresh slightly early so an expiring token is never handed out
	ttl := time.Duration(body.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= 30 * time.Second
	}
	c.aatExpires = time.Now().Add(ttl)
	return c.aat, nil
}

func (c *Client) obtainRPT(ctx context.Context, aat string) (string, error) {
	var body rptResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(aat).
		SetResult(&body).
		Post(c.cfg.UMARPTEndpoint)
	if err != nil {
		return "", fmt.Errorf("uma: obtain rpt: %w", err)
	}
	if resp.StatusCode() != 201 {
		c.log.Error("failed to obtain RPT",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", ErrTokenDenied
	}
	return body.RPT, nil
}

// obtainResourceTicket probes the protected resource expecting a 403 carrying
// a permission ticket. Any other status means the resource is not protected
// the way we expect.
func (c *Client) obtainResourceTicket(ctx context.Context, rpt, resourceURI string) (string, error) {
	var body ticketResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(rpt).
		SetResult(&body).
		ForceContentType("application/json").
		Get(resourceURI)
	if err != nil {
		return "", fmt.Errorf("uma: obtain ticket: %w", err)
	}
	if resp.StatusCode() != 403 {
		c.log.Error("failed to obtain ticket",
			zap.Int("status", resp.StatusCode()),
			zap.String("resource", resourceURI),
		)
		return "", ErrNotProtected
	}
	if body.Ticket == "" {
		return "", ErrNoTicket
	}
	return body.Ticket, nil
}

func (c *Client) authorizeRPT(ctx context.Context, aat, rpt, ticket string) (string, error) {
	var body rptResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(aat).
		SetBody(map[string]string{"ticket": ticket, "rpt": rpt}).
		SetResult(&body).
		Post(c.cfg.UMAAuthorizeEndpoint)
	if err != nil {
		return "", fmt.Errorf("uma: authorize rpt: %w", err)
	}
	if resp.StatusCode() != 200 || body.RPT != rpt {
		c.log.Error("failed to authorize RPT",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", ErrTokenDenied
	}
	return rpt, nil
}

func (c *Client) AcquireToken(ctx context.Context, resourceURI string) (string, error) {
	aat, err := c.obtainAAT(ctx)
	if err != nil {
		return "", err
	}
	rpt, err := c.obtainRPT(ctx, aat)
	if err != nil {
		return "", err
	}
	ticket, err := c.obtainResourceTicket(ctx, rpt, resourceURI)
	if err != nil {
		return "", err
	}
	return c.authorizeRPT(ctx, aat, rpt, ticket)
}

func (c *Client) AcquireTokenForTicket(ctx context.Context, ticket string) (string, error) {
	aat, err := c.obtainAAT(ctx)
	if err != nil {
		return "", err
	}
	rpt, err := c.obtainRPT(ctx, aat)
	if err != nil {
		return "", err
	}
	return c.authorizeRPT(ctx, aat, rpt, ticket)
}

var Module = fx.Module("uma",
	fx.Provide(
		NewClient,
		func(c *Client) TokenSource { return c },
	),
)
