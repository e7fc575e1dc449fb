package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/config"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
)

type sendCall struct {
	To      []string
	Subject string
	Body    string
}

type providerStub struct {
	err   error
	calls []sendCall
}

func (p *providerStub) Send(_ context.Context, to []string, subject, body string) error {
	p.calls = append(p.calls, sendCall{To: to, Subject: subject, Body: body})
	return p.err
}

func newTestDispatcher(provider *providerStub) Dispatcher {
	return NewDispatcher(DispatcherParam{
		Log:      zap.NewNop(),
		Provider: provider,
		Config:   config.Config{SupportEmail: "support@example.com"},
	})
}

func testEvent(kind Kind) Event {
	return Event{
		Kind: kind,
		Account: &accountdomain.Account{
			BusinessName: "Acme Identity",
			ContactEmail: "billing@acme.example",
		},
		Payment: &paymentdomain.Payment{
			InvoiceID:   "123456789",
			Amount:      50,
			CreditsUsed: 30,
			Month:       3,
			Year:        2023,
		},
		Record:    &licensedomain.UsageRecord{NumberLicenses: 10},
		CardLast4: "4242",
	}
}

func TestNotifySendsMonthlySummary(t *testing.T) {
	provider := &providerStub{}
	d := newTestDispatcher(provider)

	d.Notify(context.Background(), testEvent(KindMonthlySummary))

	if len(provider.calls) != 1 {
		t.Fatalf("expected one email, got %d", len(provider.calls))
	}
	call := provider.calls[0]
	if call.To[0] != "billing@acme.example" {
		t.Fatalf("expected account contact as recipient, got %v", call.To)
	}
	for _, want := range []string{"Acme Identity", "123456789", "$50.00", "$30.00", "$20.00", "10"} {
		if !strings.Contains(call.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, call.Body)
		}
	}
}

func TestNotifyIncludesCardDigitsOnFailure(t *testing.T) {
	provider := &providerStub{}
	d := newTestDispatcher(provider)

	d.Notify(context.Background(), testEvent(KindChargingFailed))

	if len(provider.calls) != 1 {
		t.Fatalf("expected one email, got %d", len(provider.calls))
	}
	if !strings.Contains(provider.calls[0].Body, "4242") {
		t.Fatalf("expected declined card digits in body:\n%s", provider.calls[0].Body)
	}
}

func TestNotifySwallowsProviderErrors(t *testing.T) {
	provider := &providerStub{err: errors.New("smtp unreachable")}
	d := newTestDispatcher(provider)

	// must not panic or propagate anything to the billing caller
	d.Notify(context.Background(), testEvent(KindPaymentMade))

	if len(provider.calls) != 1 {
		t.Fatalf("expected delivery attempt, got %d", len(provider.calls))
	}
}

func TestNotifyDropsEventsMissingRequiredFields(t *testing.T) {
	provider := &providerStub{}
	d := newTestDispatcher(provider)

	event := testEvent(KindMonthlySummary)
	event.Record = nil
	d.Notify(context.Background(), event)

	if len(provider.calls) != 0 {
		t.Fatalf("expected no delivery for incomplete event, got %d", len(provider.calls))
	}
}

func TestNotifyDropsEventsWithoutAccount(t *testing.T) {
	provider := &providerStub{}
	d := newTestDispatcher(provider)

	event := testEvent(KindNewAccount)
	event.Account = nil
	d.Notify(context.Background(), event)

	if len(provider.calls) != 0 {
		t.Fatalf("expected no delivery without an account, got %d", len(provider.calls))
	}
}
