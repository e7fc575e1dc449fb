// Package idp is the SCIM v2 client used to provision and manage users at
// the identity provider.
package idp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/uma"
	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrWriteFailed = errors.New("idp: error writing to identity provider")

// Connector provisions users at the identity provider over SCIM.
type Connector interface {
	CreateUser(ctx context.Context, user accountdomain.User, password string, active bool) (string, error)
	ActivateUser(ctx context.Context, user accountdomain.User) error
	UpdateUser(ctx context.Context, user accountdomain.User) error
	// EmailExists reports whether the provider already holds a user with
	// this email address.
	EmailExists(ctx context.Context, email string) (bool, error)
}

type Client struct {
	http   *resty.Client
	tokens uma.TokenSource
	cfg    config.Config
	log    *zap.Logger
}

func NewClient(cfg config.Config, tokens uma.TokenSource, log *zap.Logger) *Client {
	return &Client{
		http:   resty.New().SetTimeout(30 * time.Second),
		tokens: tokens,
		cfg:    cfg,
		log:    log.Named("idp.client"),
	}
}

type scimName struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

type scimMultiValue struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Type    string `json:"type"`
}

type scimUser struct {
	Schemas      []string         `json:"schemas,omitempty"`
	UserName     string           `json:"userName,omitempty"`
	Name         *scimName        `json:"name,omitempty"`
	DisplayName  string           `json:"displayName,omitempty"`
	Password     string           `json:"password,omitempty"`
	Emails       []scimMultiValue `json:"emails,omitempty"`
	PhoneNumbers []scimMultiValue `json:"phoneNumbers,omitempty"`
	Active       *bool            `json:"active,omitempty"`
}

type scimUserResponse struct {
	ID string `json:"id"`
}

type scimListResponse struct {
	TotalResults int `json:"totalResults"`
}

// request prepares an authenticated SCIM request. In test mode the token is
// passed as a query parameter instead of going through the UMA handshake.
func (c *Client) request(ctx context.Context, url string) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if c.cfg.SCIMTestMode {
		req.SetQueryParam("access_token", c.cfg.SCIMTestModeAccessToken)
		return req, nil
	}
	rpt, err := c.tokens.AcquireToken(ctx, url)
	if err != nil {
		return nil, err
	}
	req.SetAuthToken(rpt)
	return req, nil
}

func (c *Client) CreateUser(ctx context.Context, user accountdomain.User, password string, active bool) (string, error) {
	payload := scimUser{
		Schemas:     []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		UserName:    randomUserName(),
		Name:        &scimName{GivenName: user.FirstName, FamilyName: user.LastName},
		DisplayName: user.FirstName + user.LastName,
		Password:    password,
		Emails: []scimMultiValue{
			{Value: user.Email, Primary: true, Type: "Work"},
		},
		PhoneNumbers: []scimMultiValue{
			{Value: user.PhoneNumber, Primary: true, Type: "Work"},
		},
	}
	if active {
		payload.Active = &active
	}

	req, err := c.request(ctx, c.cfg.SCIMUserEndpoint)
	if err != nil {
		return "", err
	}

	var body scimUserResponse
	resp, err := req.SetBody(payload).SetResult(&body).Post(c.cfg.SCIMUserEndpoint)
	if err != nil {
		return "", fmt.Errorf("idp: create user: %w", err)
	}
	if resp.StatusCode() != 201 {
		c.log.Error("error writing to idp",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return "", ErrWriteFailed
	}
	return body.ID, nil
}

func (c *Client) ActivateUser(ctx context.Context, user accountdomain.User) error {
	url := c.userURL(user.IdPUUID)
	req, err := c.request(ctx, url)
	if err != nil {
		return err
	}

	active := true
	resp, err := req.SetBody(scimUser{Active: &active}).Put(url)
	if err != nil {
		return fmt.Errorf("idp: activate user: %w", err)
	}
	if resp.StatusCode() != 200 {
		c.log.Error("error writing to idp",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return ErrWriteFailed
	}
	return nil
}

func (c *Client) UpdateUser(ctx context.Context, user accountdomain.User) error {
	if user.IdPUUID == "" {
		c.log.Error("error writing to idp, missing uid", zap.String("email", user.Email))
		return ErrWriteFailed
	}

	url := c.userURL(user.IdPUUID)
	req, err := c.request(ctx, url)
	if err != nil {
		return err
	}

	payload := scimUser{
		Name:        &scimName{GivenName: user.FirstName, FamilyName: user.LastName},
		DisplayName: user.FirstName + user.LastName,
		PhoneNumbers: []scimMultiValue{
			{Value: user.PhoneNumber, Primary: true, Type: "Work"},
		},
	}
	resp, err := req.SetBody(payload).Put(url)
	if err != nil {
		return fmt.Errorf("idp: update user: %w", err)
	}
	if resp.StatusCode() != 200 {
		c.log.Error("error writing to idp",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return ErrWriteFailed
	}
	return nil
}

// EmailExists runs a SCIM filter query for the address.
func (c *Client) EmailExists(ctx context.Context, email string) (bool, error) {
	req, err := c.request(ctx, c.cfg.SCIMUserEndpoint)
	if err != nil {
		return false, err
	}

	var body scimListResponse
	resp, err := req.
		SetQueryParam("filter", fmt.Sprintf("emails.value eq %q", email)).
		SetResult(&body).
		Get(c.cfg.SCIMUserEndpoint)
	if err != nil {
		return false, fmt.Errorf("idp: email lookup: %w", err)
	}
	if resp.StatusCode() != 200 {
		return false, ErrWriteFailed
	}
	return body.TotalResults > 0, nil
}

func (c *Client) userURL(uuid string) string {
	return c.cfg.SCIMUserEndpoint + "/" + uuid
}

func randomUserName() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

var Module = fx.Module("idp",
	fx.Provide(
		NewClient,
		func(c *Client) Connector { return c },
	),
)
