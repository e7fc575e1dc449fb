package gateway

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"go.uber.org/zap"

	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/payment/domain"
)

// StripeGateway implements domain.Gateway on top of the Stripe SDK.
type StripeGateway struct {
	api *client.API
	log *zap.Logger
}

func NewStripeGateway(cfg config.Config, log *zap.Logger) domain.Gateway {
	api := &client.API{}
	api.Init(cfg.StripeAPIKey, nil)

	return &StripeGateway{
		api: api,
		log: log.Named("payment.gateway.stripe"),
	}
}

func (g *StripeGateway) CreateCharge(ctx context.Context, customerID string, amountCents int64, currency, description string) (string, error) {
	params := &stripe.ChargeParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency),
		Customer:    stripe.String(customerID),
		Description: stripe.String(description),
	}

	ch, err := g.api.Charges.New(params)
	if err != nil {
		return "", err
	}

	return ch.ID, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, description, cardToken string) (string, error) {
	params := &stripe.CustomerParams{
		Params:      stripe.Params{Context: ctx},
		Email:       stripe.String(email),
		Description: stripe.String(description),
	}
	if cardToken != "" {
		params.Source = stripe.String(cardToken)
	}

	cus, err := g.api.Customers.New(params)
	if err != nil {
		return "", err
	}

	return cus.ID, nil
}

func (g *StripeGateway) AttachCard(ctx context.Context, customerID, cardToken string) (string, string, error) {
	params := &stripe.CardParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Token:    stripe.String(cardToken),
	}

	card, err := g.api.Cards.New(params)
	if err != nil {
		return "", "", err
	}

	return card.ID, card.Last4, nil
}

func (g *StripeGateway) DefaultCardLast4(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{Params: stripe.Params{Context: ctx}}

	cus, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return "", err
	}
	if cus.DefaultSource == nil {
		return "", nil
	}

	card, err := g.api.Cards.Get(cus.DefaultSource.ID, &stripe.CardParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return "", err
	}

	return card.Last4, nil
}

func (g *StripeGateway) DeleteCard(ctx context.Context, customerID, cardID string) error {
	_, err := g.api.Cards.Del(cardID, &stripe.CardParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	})
	return err
}

func (g *StripeGateway) IsCardError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Code == stripe.ErrorCodeCardDeclined
}
