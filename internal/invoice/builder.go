// Package invoice builds the monthly invoice for each billable account from
// its synced usage.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/clock"
	"github.com/gluufederation/ecommerce/internal/config"
	creditdomain "github.com/gluufederation/ecommerce/internal/credit/domain"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/notification"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/pkg/repository"
)

// ErrNoUsage means the account has no usage record for the billing period,
// so no invoice is due.
var ErrNoUsage = errors.New("invoice: no usage for billing period")

// Builder turns one account's previous-month usage into an INITIATED payment.
type Builder interface {
	// Build creates the invoice for the given billing period. It is
	// idempotent per (account, month, year): an existing payment for the
	// period is returned unchanged.
	Build(ctx context.Context, account *accountdomain.Account, month, year int) (*paymentdomain.Payment, error)
	// BuildLastMonth invoices the period preceding the current one.
	BuildLastMonth(ctx context.Context, account *accountdomain.Account) (*paymentdomain.Payment, error)
}

type BuilderParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Billing    *config.BillingConfigHolder
	Licenses   licensedomain.Service
	Credits    creditdomain.Service
	Payments   paymentdomain.Service
	Dispatcher notification.Dispatcher
}

type builder struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	billing    *config.BillingConfigHolder
	licenses   licensedomain.Service
	credits    creditdomain.Service
	paymentSvc paymentdomain.Service
	dispatcher notification.Dispatcher

	payments repository.Repository[paymentdomain.Payment]
}

func NewBuilder(p BuilderParam) Builder {
	return &builder{
		db:  p.DB,
		log: p.Log.Named("invoice.builder"),

		genID:      p.GenID,
		clock:      p.Clock,
		billing:    p.Billing,
		licenses:   p.Licenses,
		credits:    p.Credits,
		paymentSvc: p.Payments,
		dispatcher: p.Dispatcher,

		payments: repository.ProvideStore[paymentdomain.Payment](p.DB),
	}
}

func (b *builder) BuildLastMonth(ctx context.Context, account *accountdomain.Account) (*paymentdomain.Payment, error) {
	month, year := clock.LastMonth(b.clock.Now())
	return b.Build(ctx, account, month, year)
}

func (b *builder) Build(ctx context.Context, account *accountdomain.Account, month, year int) (*paymentdomain.Payment, error) {
	existing, err := b.payments.FindOne(ctx, &paymentdomain.Payment{
		AccountID: account.ID,
		Month:     month,
		Year:      year,
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		b.log.Info("invoice already exists for period",
			zap.String("invoice_id", existing.InvoiceID),
			zap.Int("month", month),
			zap.Int("year", year),
		)
		return existing, nil
	}

	license, err := b.licenses.GetByAccount(ctx, int64(account.ID))
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, ErrNoUsage
	}

	record, err := b.licenses.RecordForPeriod(ctx, license, month, year)
	if err != nil {
		return nil, err
	}
	if record == nil || record.NumberLicenses == 0 {
		return nil, ErrNoUsage
	}

	price := b.billing.Get().PricePerLicense
	amount := record.TotalUSD(price)
	details := lineItems(record, price)

	payment := &paymentdomain.Payment{
		ID:        b.genID.Generate(),
		AccountID: account.ID,
		InvoiceID: newInvoiceID(),
		Amount:    amount,
		Details:   details,
		Status:    paymentdomain.PaymentStatusInitiated,
		Month:     month,
		Year:      year,
	}

	// credit consumption and invoice creation commit together
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		used, err := b.credits.Apply(ctx, tx, account, amount)
		if err != nil {
			return err
		}
		payment.CreditsUsed = used
		return b.payments.WithTrx(tx).Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	b.log.Info("invoice created",
		zap.String("invoice_id", payment.InvoiceID),
		zap.Int64("account_id", int64(account.ID)),
		zap.Float64("amount", payment.Amount),
		zap.Float64("credits_used", payment.CreditsUsed),
	)

	// the summary mentions the card that will be charged, when one exists
	b.dispatcher.Notify(ctx, notification.Event{
		Kind:      notification.KindMonthlySummary,
		Account:   account,
		Payment:   payment,
		Record:    record,
		CardLast4: b.paymentSvc.DefaultCardLast4(ctx, int64(account.ID)),
	})
	return payment, nil
}

// lineItems maps each MAC address to its issued count and line total.
func lineItems(record *licensedomain.UsageRecord, price float64) datatypes.JSONMap {
	items := datatypes.JSONMap{}
	for mac, raw := range record.Details {
		count := toInt(raw)
		items[mac] = []any{count, float64(count) * price}
	}
	return items
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// newInvoiceID returns a random 9 digit reference shown on customer emails.
func newInvoiceID() string {
	return fmt.Sprintf("%09d", rand.Intn(1_000_000_000))
}

var Module = fx.Module("invoice",
	fx.Provide(NewBuilder),
)
