package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CurrencyMapping pairs the pricing peg a country indexes to with the
// currency the company is actually billed in.
type CurrencyMapping struct {
	PricingPeg      string `mapstructure:"pricingPeg"`
	BillingCurrency string `mapstructure:"billingCurrency"`
}

// RatesConfig carries the pricing knobs that operators tune without a deploy:
// the country-to-currency map, the fallback commission rate, and the salary
// threshold that routes a posting into executive search.
type RatesConfig struct {
	CountryCurrencies        map[string]CurrencyMapping `mapstructure:"countryCurrencies"`
	DefaultPricingPeg        string                     `mapstructure:"defaultPricingPeg"`
	DefaultBillingCurrency   string                     `mapstructure:"defaultBillingCurrency"`
	DefaultCommissionRate    float64                    `mapstructure:"defaultCommissionRate"`
	ExecutiveSalaryThreshold float64                    `mapstructure:"executiveSalaryThreshold"`
}

func DefaultRatesConfig() RatesConfig {
	return RatesConfig{
		CountryCurrencies: map[string]CurrencyMapping{
			"IN": {PricingPeg: "INR", BillingCurrency: "INR"},
			"US": {PricingPeg: "USD", BillingCurrency: "USD"},
			"GB": {PricingPeg: "GBP", BillingCurrency: "GBP"},
			"AU": {PricingPeg: "AUD", BillingCurrency: "AUD"},
			"NZ": {PricingPeg: "NZD", BillingCurrency: "NZD"},
			"CA": {PricingPeg: "CAD", BillingCurrency: "CAD"},
			"SG": {PricingPeg: "SGD", BillingCurrency: "SGD"},
			"AE": {PricingPeg: "AED", BillingCurrency: "AED"},
			"DE": {PricingPeg: "EUR", BillingCurrency: "EUR"},
			"FR": {PricingPeg: "EUR", BillingCurrency: "EUR"},
		},
		DefaultPricingPeg:        "USD",
		DefaultBillingCurrency:   "USD",
		DefaultCommissionRate:    0.20,
		ExecutiveSalaryThreshold: 200_000,
	}
}

// RatesConfigHolder serves the current RatesConfig and hot-reloads it when the
// mounted file changes.
type RatesConfigHolder struct {
	current atomic.Value // holds RatesConfig
}

func NewRatesConfigHolder() (*RatesConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/walletcore/config")
	v.AddConfigPath("/etc/walletcore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WALLETCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultRatesConfig()
		v.SetDefault("rates.countryCurrencies", defaults.CountryCurrencies)
		v.SetDefault("rates.defaultPricingPeg", defaults.DefaultPricingPeg)
		v.SetDefault("rates.defaultBillingCurrency", defaults.DefaultBillingCurrency)
		v.SetDefault("rates.defaultCommissionRate", defaults.DefaultCommissionRate)
		v.SetDefault("rates.executiveSalaryThreshold", defaults.ExecutiveSalaryThreshold)
	}

	var cfg RatesConfig
	if err := v.UnmarshalKey("rates", &cfg); err != nil {
		return nil, err
	}
	if err := validateRatesConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RatesConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RatesConfig
		if err := v.UnmarshalKey("rates", &updated); err != nil {
			log.Printf("[rates-config] reload failed: %v", err)
			return
		}
		if err := validateRatesConfig(updated); err != nil {
			log.Printf("[rates-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[rates-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Current returns the active RatesConfig snapshot.
func (h *RatesConfigHolder) Current() RatesConfig {
	cfg, ok := h.current.Load().(RatesConfig)
	if !ok {
		return DefaultRatesConfig()
	}
	return cfg
}

// CurrencyForCountry resolves the currency pair for an ISO country code,
// falling back to the configured defaults for unmapped countries.
func (h *RatesConfigHolder) CurrencyForCountry(countryCode string) CurrencyMapping {
	cfg := h.Current()
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if mapping, ok := cfg.CountryCurrencies[code]; ok {
		return mapping
	}
	return CurrencyMapping{
		PricingPeg:      cfg.DefaultPricingPeg,
		BillingCurrency: cfg.DefaultBillingCurrency,
	}
}

func validateRatesConfig(cfg RatesConfig) error {
	if cfg.DefaultCommissionRate < 0 || cfg.DefaultCommissionRate > 1 {
		return errors.New("defaultCommissionRate must be within [0, 1]")
	}
	if cfg.ExecutiveSalaryThreshold < 0 {
		return errors.New("executiveSalaryThreshold must not be negative")
	}
	if strings.TrimSpace(cfg.DefaultPricingPeg) == "" || strings.TrimSpace(cfg.DefaultBillingCurrency) == "" {
		return errors.New("default currency pair must be set")
	}
	for code, mapping := range cfg.CountryCurrencies {
		if strings.TrimSpace(code) == "" {
			return errors.New("country code must not be empty")
		}
		if strings.TrimSpace(mapping.PricingPeg) == "" || strings.TrimSpace(mapping.BillingCurrency) == "" {
			return errors.New("currency mapping for " + code + " must carry both currencies")
		}
	}
	return nil
}
