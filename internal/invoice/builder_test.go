package invoice_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/clock"
	"github.com/gluufederation/ecommerce/internal/config"
	creditservice "github.com/gluufederation/ecommerce/internal/credit/service"
	"github.com/gluufederation/ecommerce/internal/invoice"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/notification"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
)

type licenseStub struct {
	license *licensedomain.License
	record  *licensedomain.UsageRecord
}

func (s *licenseStub) Acquire(context.Context, int64, string) (*licensedomain.License, error) {
	return nil, errors.New("not implemented")
}

func (s *licenseStub) Sync(context.Context, *licensedomain.License) error { return nil }

func (s *licenseStub) Deactivate(context.Context, *licensedomain.License, string) error {
	return nil
}

func (s *licenseStub) GetByAccount(context.Context, int64) (*licensedomain.License, error) {
	return s.license, nil
}

func (s *licenseStub) RecordForPeriod(context.Context, *licensedomain.License, int, int) (*licensedomain.UsageRecord, error) {
	return s.record, nil
}

func (s *licenseStub) Records(context.Context, *licensedomain.License) ([]*licensedomain.UsageRecord, error) {
	if s.record == nil {
		return nil, nil
	}
	return []*licensedomain.UsageRecord{s.record}, nil
}

type dispatcherStub struct {
	events []notification.Event
}

func (d *dispatcherStub) Notify(_ context.Context, event notification.Event) {
	d.events = append(d.events, event)
}

type paymentSvcStub struct {
	last4 string
}

func (s *paymentSvcStub) Charge(context.Context, *paymentdomain.Payment) paymentdomain.Outcome {
	return paymentdomain.Outcome{Code: paymentdomain.OutcomeTransient, Err: errors.New("not implemented")}
}

func (s *paymentSvcStub) Retry(context.Context, *paymentdomain.Payment) paymentdomain.Outcome {
	return paymentdomain.Outcome{Code: paymentdomain.OutcomeTransient, Err: errors.New("not implemented")}
}

func (s *paymentSvcStub) EnsureCustomer(context.Context, int64, string) (*paymentdomain.StripeCustomer, *paymentdomain.StripeCard, error) {
	return nil, nil, errors.New("not implemented")
}

func (s *paymentSvcStub) RemoveCard(context.Context, int64, string) error {
	return errors.New("not implemented")
}

func (s *paymentSvcStub) CustomerForAccount(context.Context, int64) (*paymentdomain.StripeCustomer, error) {
	return nil, nil
}

func (s *paymentSvcStub) DefaultCardLast4(context.Context, int64) string { return s.last4 }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.Credit{},
		&licensedomain.License{},
		&licensedomain.UsageRecord{},
		&paymentdomain.Payment{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type builderFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	account    *accountdomain.Account
	licenses   *licenseStub
	dispatcher *dispatcherStub
	builder    invoice.Builder
	now        time.Time
}

func newBuilderFixture(t *testing.T, numberLicenses int, details datatypes.JSONMap) *builderFixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	// billing runs mid-April invoice the March usage
	now := time.Date(2023, 4, 1, 3, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	account := &accountdomain.Account{
		ID:               node.Generate(),
		BusinessName:     "Acme Identity",
		ContactFirstName: "Grace",
		ContactLastName:  "Hopper",
		ContactEmail:     fmt.Sprintf("%s@example.com", t.Name()),
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}

	license := &licensedomain.License{
		ID:        node.Generate(),
		AccountID: account.ID,
		LicenseID: "lic-" + t.Name(),
		IsActive:  true,
	}
	var record *licensedomain.UsageRecord
	if numberLicenses >= 0 {
		record = &licensedomain.UsageRecord{
			ID:             node.Generate(),
			LicenseID:      license.ID,
			Year:           2023,
			Month:          3,
			NumberLicenses: numberLicenses,
			Details:        details,
		}
	}

	licenses := &licenseStub{license: license, record: record}
	dispatcher := &dispatcherStub{}

	credits := creditservice.NewService(creditservice.ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Billing: holder,
	})

	builder := invoice.NewBuilder(invoice.BuilderParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Billing:    holder,
		Licenses:   licenses,
		Credits:    credits,
		Payments:   &paymentSvcStub{last4: "4242"},
		Dispatcher: dispatcher,
	})

	return &builderFixture{
		db:         db,
		node:       node,
		account:    account,
		licenses:   licenses,
		dispatcher: dispatcher,
		builder:    builder,
		now:        now,
	}
}

func TestBuildInvoicesPreviousMonthUsage(t *testing.T) {
	ctx := context.Background()
	f := newBuilderFixture(t, 10, datatypes.JSONMap{
		"00:11:22:33:44:55": 6,
		"66:77:88:99:aa:bb": 4,
	})

	payment, err := f.builder.BuildLastMonth(ctx, f.account)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if payment.Amount != 50 {
		t.Fatalf("expected amount 50.00, got %v", payment.Amount)
	}
	if payment.Status != paymentdomain.PaymentStatusInitiated {
		t.Fatalf("expected INITIATED, got %s", payment.Status)
	}
	if payment.Month != 3 || payment.Year != 2023 {
		t.Fatalf("expected period 3/2023, got %d/%d", payment.Month, payment.Year)
	}
	if !regexp.MustCompile(`^\d{9}$`).MatchString(payment.InvoiceID) {
		t.Fatalf("expected 9 digit invoice id, got %q", payment.InvoiceID)
	}

	line, ok := payment.Details["00:11:22:33:44:55"].([]any)
	if !ok || len(line) != 2 {
		t.Fatalf("expected [count, total] line item, got %v", payment.Details["00:11:22:33:44:55"])
	}
	if line[0].(int) != 6 || line[1].(float64) != 30 {
		t.Fatalf("expected line [6 30], got %v", line)
	}

	if len(f.dispatcher.events) != 1 || f.dispatcher.events[0].Kind != notification.KindMonthlySummary {
		t.Fatalf("expected one monthly summary notification, got %v", f.dispatcher.events)
	}
	if f.dispatcher.events[0].CardLast4 != "4242" {
		t.Fatalf("expected card digits on summary, got %q", f.dispatcher.events[0].CardLast4)
	}
}

func TestBuildAppliesCreditInsideTransaction(t *testing.T) {
	ctx := context.Background()
	f := newBuilderFixture(t, 10, datatypes.JSONMap{"aa:bb:cc:dd:ee:ff": 10})

	credit := &accountdomain.Credit{
		ID:              f.node.Generate(),
		AccountID:       f.account.ID,
		InitialAmount:   30,
		RemainingAmount: 30,
		Expires:         f.now.AddDate(1, 0, 0),
	}
	if err := f.db.Create(credit).Error; err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	payment, err := f.builder.BuildLastMonth(ctx, f.account)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if payment.Amount != 50 {
		t.Fatalf("expected amount 50.00, got %v", payment.Amount)
	}
	if payment.CreditsUsed != 30 {
		t.Fatalf("expected 30.00 credits used, got %v", payment.CreditsUsed)
	}
	if payment.PaidAmount() != 20 {
		t.Fatalf("expected 20.00 due on card, got %v", payment.PaidAmount())
	}

	var remaining float64
	if err := f.db.Model(&accountdomain.Credit{}).
		Where("id = ?", credit.ID).
		Pluck("remaining_amount", &remaining).Error; err != nil {
		t.Fatalf("read remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected credit fully consumed, got %v", remaining)
	}
}

func TestBuildIsIdempotentPerPeriod(t *testing.T) {
	ctx := context.Background()
	f := newBuilderFixture(t, 5, datatypes.JSONMap{"aa:bb:cc:dd:ee:ff": 5})

	first, err := f.builder.BuildLastMonth(ctx, f.account)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := f.builder.BuildLastMonth(ctx, f.account)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	if first.InvoiceID != second.InvoiceID {
		t.Fatalf("expected same invoice on rebuild, got %q and %q", first.InvoiceID, second.InvoiceID)
	}

	var count int64
	if err := f.db.Model(&paymentdomain.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single payment row, got %d", count)
	}
}

func TestBuildSkipsAccountWithoutUsage(t *testing.T) {
	ctx := context.Background()
	f := newBuilderFixture(t, -1, nil)

	_, err := f.builder.BuildLastMonth(ctx, f.account)
	if !errors.Is(err, invoice.ErrNoUsage) {
		t.Fatalf("expected ErrNoUsage, got %v", err)
	}

	var count int64
	if err := f.db.Model(&paymentdomain.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no payment rows, got %d", count)
	}
}

func TestBuildZeroLicensesCreatesNoPayment(t *testing.T) {
	ctx := context.Background()
	f := newBuilderFixture(t, 0, datatypes.JSONMap{})

	_, err := f.builder.BuildLastMonth(ctx, f.account)
	if !errors.Is(err, invoice.ErrNoUsage) {
		t.Fatalf("expected ErrNoUsage for zero licenses, got %v", err)
	}

	var count int64
	if err := f.db.Model(&paymentdomain.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no payment rows, got %d", count)
	}
}
