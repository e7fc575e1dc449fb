package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
)

const (
	ErrorTypeDeadlineExceeded = "deadline_exceeded"
	ErrorTypeDB               = "db"
	ErrorTypeRemote           = "remote"
	ErrorTypeUnknown          = "unknown"
)

// BillingMetrics records batch billing activity for scraping via /metrics.
type BillingMetrics struct {
	jobRuns       *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	accountsOK    *prometheus.CounterVec
	accountsFail  *prometheus.CounterVec
	chargeOutcome *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var (
	billingOnce sync.Once
	billing     *BillingMetrics
)

// Billing returns the process-wide billing metrics, registering them on first use.
func Billing() *BillingMetrics {
	billingOnce.Do(func() {
		billing = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return billing
}

func newBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	m := &BillingMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_job_runs_total",
			Help: "Number of billing job invocations.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_job_errors_total",
			Help: "Number of billing job failures by error type.",
		}, []string{"job", "type"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_job_duration_seconds",
			Help:    "Billing job wall time.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		accountsOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_job_accounts_processed_total",
			Help: "Accounts processed successfully per job.",
		}, []string{"job"}),
		accountsFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_job_accounts_failed_total",
			Help: "Accounts that failed and were skipped per job.",
		}, []string{"job"}),
		chargeOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_charge_outcomes_total",
			Help: "Charge attempts by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_notifications_total",
			Help: "Notification dispatch results by kind and status.",
		}, []string{"kind", "status"}),
	}

	for _, c := range []prometheus.Collector{
		m.jobRuns, m.jobErrors, m.jobDuration, m.accountsOK, m.accountsFail, m.chargeOutcome, m.notifications,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

func (m *BillingMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) IncJobError(job string, err error) {
	m.jobErrors.WithLabelValues(job, classifyError(err)).Inc()
}

func (m *BillingMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *BillingMetrics) IncAccountProcessed(job string) {
	m.accountsOK.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) IncAccountFailed(job string) {
	m.accountsFail.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) IncChargeOutcome(outcome string) {
	m.chargeOutcome.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) IncNotification(kind string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}

func classifyError(err error) string {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeDeadlineExceeded
	}
	if errors.Is(err, licensedomain.ErrRemote) {
		return ErrorTypeRemote
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ErrorTypeDB
	}
	return ErrorTypeUnknown
}
