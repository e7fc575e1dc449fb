// Package notification fans billing outcomes out to account contacts. A
// notification failure is logged and swallowed; it must never abort the
// billing workflow that triggered it.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/config"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	obsmetrics "github.com/gluufederation/ecommerce/internal/observability/metrics"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Kind identifies the billing event being announced.
type Kind string

const (
	KindMonthlySummary     Kind = "monthly_summary"
	KindPaymentMade        Kind = "payment_made"
	KindChargingFailed     Kind = "charging_failed"
	KindLicenseDeactivated Kind = "license_deactivated"
	KindNewAccount         Kind = "new_account"
)

// Event carries everything a template might need. Payment and Record may be
// nil depending on the kind.
type Event struct {
	Kind      Kind
	Account   *accountdomain.Account
	Payment   *paymentdomain.Payment
	Record    *licensedomain.UsageRecord
	CardLast4 string
}

// Dispatcher delivers billing notifications. Implementations never return an
// error to callers.
type Dispatcher interface {
	Notify(ctx context.Context, event Event)
}

type DispatcherParam struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
	Config   config.Config
}

type emailDispatcher struct {
	log      *zap.Logger
	provider email.Provider
	support  string
}

func NewDispatcher(p DispatcherParam) Dispatcher {
	return &emailDispatcher{
		log:      p.Log.Named("notification.dispatcher"),
		provider: p.Provider,
		support:  p.Config.SupportEmail,
	}
}

func (d *emailDispatcher) Notify(ctx context.Context, event Event) {
	metrics := obsmetrics.Billing()

	if event.Account == nil {
		d.log.Error("notification dropped, no account on event", zap.String("kind", string(event.Kind)))
		metrics.IncNotification(string(event.Kind), false)
		return
	}

	subject, body, err := render(event)
	if err != nil {
		d.log.Error("failed to render notification",
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		metrics.IncNotification(string(event.Kind), false)
		return
	}

	to := []string{event.Account.ContactEmail}
	if err := d.provider.Send(ctx, to, subject, body); err != nil {
		d.log.Error("failed to send notification",
			zap.String("kind", string(event.Kind)),
			zap.Strings("to", to),
			zap.Error(err),
		)
		metrics.IncNotification(string(event.Kind), false)
		return
	}

	metrics.IncNotification(string(event.Kind), true)
}

var bodyTemplates = template.Must(template.New("notifications").Parse(`
{{define "monthly_summary"}}
<p>Hi {{.Account.Name}},</p>
<p>Your usage summary for {{.Payment.Month}}/{{.Payment.Year}} is ready.</p>
<p>Licenses used: {{.Record.NumberLicenses}}<br>
Invoice {{.Payment.InvoiceID}} total: ${{printf "%.2f" .Payment.Amount}}<br>
Credits applied: ${{printf "%.2f" .Payment.CreditsUsed}}<br>
Amount due: ${{printf "%.2f" .Payment.PaidAmount}}</p>
{{if .CardLast4}}<p>The card ending in {{.CardLast4}} will be charged.</p>{{end}}
{{end}}

{{define "payment_made"}}
<p>Hi {{.Account.Name}},</p>
<p>Your payment for invoice {{.Payment.InvoiceID}} of ${{printf "%.2f" .Payment.PaidAmount}} was successful. Thank you.</p>
{{end}}

{{define "charging_failed"}}
<p>Hi {{.Account.Name}},</p>
<p>We could not charge the card ending in {{.CardLast4}} for invoice {{.Payment.InvoiceID}} (${{printf "%.2f" .Payment.PaidAmount}}).</p>
<p>Please update your payment details. We will retry automatically next month.</p>
{{end}}

{{define "license_deactivated"}}
<p>Hi {{.Account.Name}},</p>
<p>The charge for invoice {{.Payment.InvoiceID}} on the card ending in {{.CardLast4}} failed again, and your license has been deactivated.</p>
<p>Contact support to reactivate your account.</p>
{{end}}

{{define "new_account"}}
<p>Hi {{.Account.Name}},</p>
<p>Welcome! Your account has been activated and your license is ready.</p>
{{end}}
`))

func render(event Event) (subject, body string, err error) {
	switch event.Kind {
	case KindMonthlySummary:
		subject = "Your monthly usage summary"
		if event.Payment == nil || event.Record == nil {
			return "", "", fmt.Errorf("monthly summary requires payment and usage record")
		}
	case KindPaymentMade:
		subject = "Payment received"
		if event.Payment == nil {
			return "", "", fmt.Errorf("payment notification requires payment")
		}
	case KindChargingFailed:
		subject = "We could not process your payment"
		if event.Payment == nil {
			return "", "", fmt.Errorf("charging-failed notification requires payment")
		}
	case KindLicenseDeactivated:
		subject = "Your license has been deactivated"
		if event.Payment == nil {
			return "", "", fmt.Errorf("deactivation notification requires payment")
		}
	case KindNewAccount:
		subject = "Welcome to Gluu"
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", event.Kind)
	}

	var buf bytes.Buffer
	if err := bodyTemplates.ExecuteTemplate(&buf, string(event.Kind), event); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

var Module = fx.Module("notification",
	fx.Provide(NewDispatcher),
)
