package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/config"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/notification"
	obsmetrics "github.com/gluufederation/ecommerce/internal/observability/metrics"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Config     config.Config
	Billing    *config.BillingConfigHolder
	Gateway    paymentdomain.Gateway
	Licenses   licensedomain.Service
	Dispatcher notification.Dispatcher
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	billing    *config.BillingConfigHolder
	gateway    paymentdomain.Gateway
	licenses   licensedomain.Service
	dispatcher notification.Dispatcher

	accounts  repository.Repository[accountdomain.Account]
	payments  repository.Repository[paymentdomain.Payment]
	customers repository.Repository[paymentdomain.StripeCustomer]
	cards     repository.Repository[paymentdomain.StripeCard]
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payment.service"),

		genID:      p.GenID,
		billing:    p.Billing,
		gateway:    p.Gateway,
		licenses:   p.Licenses,
		dispatcher: p.Dispatcher,

		accounts:  repository.ProvideStore[accountdomain.Account](p.DB),
		payments:  repository.ProvideStore[paymentdomain.Payment](p.DB),
		customers: repository.ProvideStore[paymentdomain.StripeCustomer](p.DB),
		cards:     repository.ProvideStore[paymentdomain.StripeCard](p.DB),
	}
}

// Charge runs the first charge attempt for an INITIATED payment. Only card
// failures and a missing customer record flip the payment to FAILED; any
// other processor error leaves it INITIATED for the next run.
func (s *Service) Charge(ctx context.Context, payment *paymentdomain.Payment) paymentdomain.Outcome {
	account, err := s.accounts.FindOne(ctx, &accountdomain.Account{ID: payment.AccountID})
	if err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	if account == nil {
		return s.failPayment(ctx, payment, paymentdomain.OutcomeNoPaymentMethod, paymentdomain.ErrAccountMissing)
	}

	due := payment.PaidAmount()
	if due <= 0 {
		// fully covered by credits, nothing goes to the card
		if err := s.markStatus(ctx, payment, paymentdomain.PaymentStatusPaid, ""); err != nil {
			return s.outcome(paymentdomain.OutcomeTransient, err, "")
		}
		s.dispatcher.Notify(ctx, notification.Event{
			Kind:    notification.KindPaymentMade,
			Account: account,
			Payment: payment,
		})
		return s.outcome(paymentdomain.OutcomePaid, nil, "")
	}

	customer, err := s.CustomerForAccount(ctx, int64(payment.AccountID))
	if err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	if customer == nil {
		s.log.Warn("no processor customer for account",
			zap.Int64("account_id", int64(payment.AccountID)),
			zap.String("invoice_id", payment.InvoiceID),
		)
		return s.failPayment(ctx, payment, paymentdomain.OutcomeNoPaymentMethod, paymentdomain.ErrNoPaymentMethod)
	}

	ref, err := s.gateway.CreateCharge(ctx, customer.CustomerID,
		toMinorUnits(due), s.billing.Get().Currency, chargeDescription(account.Name()))
	if err != nil {
		if s.gateway.IsCardError(err) {
			last4 := s.gatewayLast4(ctx, customer.CustomerID)
			out := s.failPayment(ctx, payment, paymentdomain.OutcomeCardDeclined, err)
			out.CardLast4 = last4
			s.dispatcher.Notify(ctx, notification.Event{
				Kind:      notification.KindChargingFailed,
				Account:   account,
				Payment:   payment,
				CardLast4: last4,
			})
			return out
		}
		s.log.Error("charge attempt failed",
			zap.String("invoice_id", payment.InvoiceID),
			zap.Error(err),
		)
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}

	if err := s.markStatus(ctx, payment, paymentdomain.PaymentStatusPaid, ref); err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	s.dispatcher.Notify(ctx, notification.Event{
		Kind:    notification.KindPaymentMade,
		Account: account,
		Payment: payment,
	})
	return s.outcome(paymentdomain.OutcomePaid, nil, "")
}

// Retry re-attempts a FAILED payment. Credits were already consumed when the
// invoice was built so the amount due is unchanged. A second card decline is
// terminal: the account's license is deactivated and blocked.
func (s *Service) Retry(ctx context.Context, payment *paymentdomain.Payment) paymentdomain.Outcome {
	account, err := s.accounts.FindOne(ctx, &accountdomain.Account{ID: payment.AccountID})
	if err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	if account == nil {
		return s.outcome(paymentdomain.OutcomeNoPaymentMethod, paymentdomain.ErrAccountMissing, "")
	}

	due := payment.PaidAmount()
	if due <= 0 {
		if err := s.markStatus(ctx, payment, paymentdomain.PaymentStatusPaid, ""); err != nil {
			return s.outcome(paymentdomain.OutcomeTransient, err, "")
		}
		return s.outcome(paymentdomain.OutcomePaid, nil, "")
	}

	customer, err := s.CustomerForAccount(ctx, int64(payment.AccountID))
	if err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	if customer == nil {
		// deactivation is reserved for a second card decline; a missing
		// payment method just stays FAILED for support to chase
		s.log.Warn("no processor customer for failed payment",
			zap.Int64("account_id", int64(payment.AccountID)),
			zap.String("invoice_id", payment.InvoiceID),
		)
		return s.outcome(paymentdomain.OutcomeNoPaymentMethod, paymentdomain.ErrNoPaymentMethod, "")
	}

	ref, err := s.gateway.CreateCharge(ctx, customer.CustomerID,
		toMinorUnits(due), s.billing.Get().Currency, chargeDescription(account.Name()))
	if err != nil {
		if s.gateway.IsCardError(err) {
			last4 := s.gatewayLast4(ctx, customer.CustomerID)
			return s.deactivateForNonPayment(ctx, account, payment, paymentdomain.OutcomeCardDeclined, err, last4)
		}
		s.log.Error("retry charge attempt failed",
			zap.String("invoice_id", payment.InvoiceID),
			zap.Error(err),
		)
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}

	if err := s.markStatus(ctx, payment, paymentdomain.PaymentStatusPaid, ref); err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	s.dispatcher.Notify(ctx, notification.Event{
		Kind:    notification.KindPaymentMade,
		Account: account,
		Payment: payment,
	})
	return s.outcome(paymentdomain.OutcomePaid, nil, "")
}

func (s *Service) EnsureCustomer(ctx context.Context, accountID int64, cardToken string) (*paymentdomain.StripeCustomer, *paymentdomain.StripeCard, error) {
	account, err := s.accounts.FindOne(ctx, &accountdomain.Account{ID: snowflake.ID(accountID)})
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, paymentdomain.ErrAccountMissing
	}

	customer, err := s.CustomerForAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	firstCard := false
	if customer == nil {
		customerID, err := s.gateway.CreateCustomer(ctx, account.ContactEmail, account.Name(), "")
		if err != nil {
			return nil, nil, err
		}
		customer = &paymentdomain.StripeCustomer{
			ID:         s.genID.Generate(),
			AccountID:  snowflake.ID(accountID),
			CustomerID: customerID,
		}
		if err := s.customers.Create(ctx, customer); err != nil {
			return nil, nil, err
		}
		firstCard = true
	}

	if cardToken == "" {
		return customer, nil, nil
	}

	cardID, _, err := s.gateway.AttachCard(ctx, customer.CustomerID, cardToken)
	if err != nil {
		return nil, nil, err
	}
	card := &paymentdomain.StripeCard{
		ID:               s.genID.Generate(),
		StripeCustomerID: customer.ID,
		CardID:           cardID,
		IsPrimary:        firstCard,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, nil, err
	}
	return customer, card, nil
}

func (s *Service) RemoveCard(ctx context.Context, accountID int64, cardID string) error {
	customer, err := s.CustomerForAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if customer == nil {
		return paymentdomain.ErrNoPaymentMethod
	}

	card, err := s.cards.FindOne(ctx, &paymentdomain.StripeCard{
		StripeCustomerID: customer.ID,
		CardID:           cardID,
	})
	if err != nil {
		return err
	}
	if card == nil {
		return paymentdomain.ErrCardNotFound
	}

	if err := s.gateway.DeleteCard(ctx, customer.CustomerID, card.CardID); err != nil {
		return err
	}
	return s.cards.Delete(ctx, card.ID.String())
}

func (s *Service) CustomerForAccount(ctx context.Context, accountID int64) (*paymentdomain.StripeCustomer, error) {
	return s.customers.FindOne(ctx, &paymentdomain.StripeCustomer{AccountID: snowflake.ID(accountID)})
}

func (s *Service) DefaultCardLast4(ctx context.Context, accountID int64) string {
	customer, err := s.CustomerForAccount(ctx, accountID)
	if err != nil || customer == nil {
		return ""
	}
	return s.gatewayLast4(ctx, customer.CustomerID)
}

// deactivateForNonPayment is the terminal path of the retry cycle: the
// payment stays FAILED, the license flips inactive and blocked, and the
// account owner is told which card declined.
func (s *Service) deactivateForNonPayment(ctx context.Context, account *accountdomain.Account, payment *paymentdomain.Payment, code paymentdomain.OutcomeCode, cause error, last4 string) paymentdomain.Outcome {
	license, err := s.licenses.GetByAccount(ctx, int64(account.ID))
	if err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, last4)
	}
	if license != nil && license.IsActive {
		if err := s.licenses.Deactivate(ctx, license, account.Name()); err != nil {
			s.log.Error("license deactivation failed",
				zap.Int64("account_id", int64(account.ID)),
				zap.Error(err),
			)
		}
	}

	s.dispatcher.Notify(ctx, notification.Event{
		Kind:      notification.KindLicenseDeactivated,
		Account:   account,
		Payment:   payment,
		CardLast4: last4,
	})

	out := s.outcome(code, cause, last4)
	return out
}

func (s *Service) failPayment(ctx context.Context, payment *paymentdomain.Payment, code paymentdomain.OutcomeCode, cause error) paymentdomain.Outcome {
	if err := s.markStatus(ctx, payment, paymentdomain.PaymentStatusFailed, ""); err != nil {
		return s.outcome(paymentdomain.OutcomeTransient, err, "")
	}
	return s.outcome(code, cause, "")
}

func (s *Service) markStatus(ctx context.Context, payment *paymentdomain.Payment, status paymentdomain.PaymentStatus, ref string) error {
	payment.Status = status
	fields := map[string]any{"status": string(status)}
	if ref != "" {
		payment.ProcessorReference = ref
		fields["processor_reference"] = ref
	}
	return s.payments.Update(ctx, payment.ID.String(), fields)
}

func (s *Service) outcome(code paymentdomain.OutcomeCode, err error, last4 string) paymentdomain.Outcome {
	obsmetrics.Billing().IncChargeOutcome(string(code))
	return paymentdomain.Outcome{Code: code, Err: err, CardLast4: last4}
}

func (s *Service) gatewayLast4(ctx context.Context, customerID string) string {
	last4, err := s.gateway.DefaultCardLast4(ctx, customerID)
	if err != nil {
		s.log.Warn("could not resolve card digits", zap.Error(err))
		return ""
	}
	return last4
}

// toMinorUnits converts a USD amount to cents for the processor.
func toMinorUnits(amount float64) int64 {
	return int64(amount * 100)
}

func chargeDescription(name string) string {
	return fmt.Sprintf("Gluu monthly license billing for %s", name)
}
