package scheduler

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/clock"
	"github.com/gluufederation/ecommerce/internal/invoice"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/pkg/db/option"
	"github.com/gluufederation/ecommerce/pkg/repository"
)

// Job is one batch billing task run over all billable accounts. A single
// account's failure is recorded in the report and never stops the batch.
type Job interface {
	Name() string
	Run(ctx context.Context) *Report
}

type JobsParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Accounts accountdomain.Service
	Licenses licensedomain.Service
	Builder  invoice.Builder
	Payments paymentdomain.Service
}

type jobDeps struct {
	log      *zap.Logger
	clock    clock.Clock
	accounts accountdomain.Service
	licenses licensedomain.Service
	builder  invoice.Builder
	payments paymentdomain.Service

	paymentStore repository.Repository[paymentdomain.Payment]
}

func newDeps(p JobsParam) *jobDeps {
	return &jobDeps{
		log:      p.Log.Named("scheduler.jobs"),
		clock:    p.Clock,
		accounts: p.Accounts,
		licenses: p.Licenses,
		builder:  p.Builder,
		payments: p.Payments,

		paymentStore: repository.ProvideStore[paymentdomain.Payment](p.DB),
	}
}

// eachBillable runs fn for every on-platform account, collecting per-account
// failures into the report.
func (d *jobDeps) eachBillable(ctx context.Context, report *Report, fn func(*accountdomain.Account) error) {
	accounts, err := d.accounts.Billable(ctx)
	if err != nil {
		report.fail(0, err)
		return
	}
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			report.fail(int64(account.ID), err)
			return
		}
		if err := fn(account); err != nil {
			d.log.Error("account failed in billing batch",
				zap.Int64("account_id", int64(account.ID)),
				zap.Error(err),
			)
			report.fail(int64(account.ID), err)
			continue
		}
	}
}

// SyncUsageJob pulls monthly license statistics from the license server and
// upserts local usage records.
type SyncUsageJob struct{ deps *jobDeps }

func NewSyncUsageJob(p JobsParam) *SyncUsageJob { return &SyncUsageJob{deps: newDeps(p)} }

func (j *SyncUsageJob) Name() string { return "sync_usage" }

func (j *SyncUsageJob) Run(ctx context.Context) *Report {
	report := &Report{}
	j.deps.eachBillable(ctx, report, func(account *accountdomain.Account) error {
		license, err := j.deps.licenses.GetByAccount(ctx, int64(account.ID))
		if err != nil {
			return err
		}
		if license == nil {
			report.skip()
			return nil
		}
		if err := j.deps.licenses.Sync(ctx, license); err != nil {
			return err
		}
		report.ok(1)
		return nil
	})
	return report
}

// MonthlySummaryJob syncs usage and builds last month's invoice for every
// billable account, applying credits as it goes.
type MonthlySummaryJob struct{ deps *jobDeps }

func NewMonthlySummaryJob(p JobsParam) *MonthlySummaryJob {
	return &MonthlySummaryJob{deps: newDeps(p)}
}

func (j *MonthlySummaryJob) Name() string { return "monthly_summary" }

func (j *MonthlySummaryJob) Run(ctx context.Context) *Report {
	report := &Report{}
	j.deps.eachBillable(ctx, report, func(account *accountdomain.Account) error {
		license, err := j.deps.licenses.GetByAccount(ctx, int64(account.ID))
		if err != nil {
			return err
		}
		if license == nil {
			report.skip()
			return nil
		}
		if err := j.deps.licenses.Sync(ctx, license); err != nil {
			return err
		}
		if _, err := j.deps.builder.BuildLastMonth(ctx, account); err != nil {
			if errors.Is(err, invoice.ErrNoUsage) {
				report.skip()
				return nil
			}
			return err
		}
		report.ok(1)
		return nil
	})
	return report
}

// MonthlyChargeJob submits every INITIATED invoice to the payment processor.
// There is no period bound: an invoice left INITIATED by a processor outage
// is picked up again on the next run, whatever month it belongs to.
type MonthlyChargeJob struct{ deps *jobDeps }

func NewMonthlyChargeJob(p JobsParam) *MonthlyChargeJob {
	return &MonthlyChargeJob{deps: newDeps(p)}
}

func (j *MonthlyChargeJob) Name() string { return "monthly_charge" }

func (j *MonthlyChargeJob) Run(ctx context.Context) *Report {
	return j.deps.chargeBatch(ctx, chargeRun{
		filter:  &paymentdomain.Payment{Status: paymentdomain.PaymentStatusInitiated},
		attempt: j.deps.payments.Charge,
	})
}

// MonthlyRetryJob gives every FAILED invoice from the previous period one
// more charge attempt. Each payment is retried at most once: the attempt is
// recorded on the row, so a second card failure deactivates the license and
// the payment is never picked up again.
type MonthlyRetryJob struct{ deps *jobDeps }

func NewMonthlyRetryJob(p JobsParam) *MonthlyRetryJob {
	return &MonthlyRetryJob{deps: newDeps(p)}
}

func (j *MonthlyRetryJob) Name() string { return "monthly_retry" }

func (j *MonthlyRetryJob) Run(ctx context.Context) *Report {
	month, year := clock.LastMonth(j.deps.clock.Now())
	return j.deps.chargeBatch(ctx, chargeRun{
		filter: &paymentdomain.Payment{
			Status: paymentdomain.PaymentStatusFailed,
			Month:  month,
			Year:   year,
		},
		opts:        []option.QueryOption{option.Where("retried = ?", false)},
		attempt:     j.deps.payments.Retry,
		markRetried: true,
	})
}

type chargeRun struct {
	filter      *paymentdomain.Payment
	opts        []option.QueryOption
	attempt     func(context.Context, *paymentdomain.Payment) paymentdomain.Outcome
	markRetried bool
}

func (d *jobDeps) chargeBatch(ctx context.Context, run chargeRun) *Report {
	report := &Report{}

	payments, err := d.paymentStore.Find(ctx, run.filter, run.opts...)
	if err != nil {
		report.fail(0, err)
		return report
	}

	for _, payment := range payments {
		if err := ctx.Err(); err != nil {
			report.fail(int64(payment.AccountID), err)
			return report
		}
		out := run.attempt(ctx, payment)
		if out.Code == paymentdomain.OutcomeTransient {
			// nothing changed on the payment; the next run re-attempts it
			report.fail(int64(payment.AccountID), out.Err)
			continue
		}
		if run.markRetried {
			if err := d.paymentStore.Update(ctx, payment.ID.String(), map[string]any{"retried": true}); err != nil {
				report.fail(int64(payment.AccountID), err)
				continue
			}
		}
		report.ok(1)
	}
	return report
}
