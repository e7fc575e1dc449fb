package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig carries the process-wide pricing parameters. It is passed
// explicitly into the invoice and credit services rather than read from
// ambient state, and can be reloaded at runtime from billing.yml.
type BillingConfig struct {
	PricePerLicense  float64 `mapstructure:"pricePerLicense"`
	Currency         string  `mapstructure:"currency"`
	CreditWindowDays int     `mapstructure:"creditWindowDays"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PricePerLicense:  5.00,
		Currency:         "USD",
		CreditWindowDays: 365,
	}
}

// BillingConfigHolder exposes the current billing configuration and hot
// reloads it when the config file changes on disk.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("config.billing")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/gluu-ecommerce")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.pricePerLicense", defaults.PricePerLicense)
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.creditWindowDays", defaults.CreditWindowDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Error("billing config reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// NewStaticBillingConfigHolder returns a holder pinned to cfg. Test helper.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.PricePerLicense <= 0 {
		return errors.New("billing.pricePerLicense must be positive")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if cfg.CreditWindowDays <= 0 {
		return errors.New("billing.creditWindowDays must be positive")
	}
	return nil
}
