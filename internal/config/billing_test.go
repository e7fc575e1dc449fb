package config

import (
	"testing"

	"go.uber.org/zap"
)

func TestBillingConfigHolderFallsBackToDefaults(t *testing.T) {
	holder, err := NewBillingConfigHolder(zap.NewNop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}

	cfg := holder.Get()
	defaults := DefaultBillingConfig()
	if cfg.PricePerLicense != defaults.PricePerLicense {
		t.Fatalf("expected default price %v, got %v", defaults.PricePerLicense, cfg.PricePerLicense)
	}
	if cfg.Currency != defaults.Currency {
		t.Fatalf("expected default currency %q, got %q", defaults.Currency, cfg.Currency)
	}
	if cfg.CreditWindowDays != defaults.CreditWindowDays {
		t.Fatalf("expected default credit window %d, got %d", defaults.CreditWindowDays, cfg.CreditWindowDays)
	}
}

func TestValidateBillingConfigRejectsBadValues(t *testing.T) {
	good := DefaultBillingConfig()
	if err := validateBillingConfig(good); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := good
	bad.PricePerLicense = 0
	if err := validateBillingConfig(bad); err == nil {
		t.Fatalf("expected error for non-positive price")
	}

	bad = good
	bad.Currency = "  "
	if err := validateBillingConfig(bad); err == nil {
		t.Fatalf("expected error for blank currency")
	}

	bad = good
	bad.CreditWindowDays = -1
	if err := validateBillingConfig(bad); err == nil {
		t.Fatalf("expected error for non-positive credit window")
	}
}
