package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRatesConfig(t *testing.T) {
	cfg := DefaultRatesConfig()
	assert.Equal(t, 0.20, cfg.DefaultCommissionRate)
	assert.Equal(t, float64(200_000), cfg.ExecutiveSalaryThreshold)
	assert.Equal(t, "USD", cfg.DefaultPricingPeg)
	assert.Equal(t, "USD", cfg.DefaultBillingCurrency)
}

func TestCurrencyForCountry(t *testing.T) {
	holder := &RatesConfigHolder{}

	mapping := holder.CurrencyForCountry("in")
	assert.Equal(t, "INR", mapping.PricingPeg)
	assert.Equal(t, "INR", mapping.BillingCurrency)

	mapping = holder.CurrencyForCountry(" gb ")
	assert.Equal(t, "GBP", mapping.BillingCurrency)

	mapping = holder.CurrencyForCountry("ZZ")
	assert.Equal(t, "USD", mapping.PricingPeg)
	assert.Equal(t, "USD", mapping.BillingCurrency)
}

func TestValidateRatesConfig(t *testing.T) {
	require.NoError(t, validateRatesConfig(DefaultRatesConfig()))

	bad := DefaultRatesConfig()
	bad.DefaultCommissionRate = 1.5
	require.Error(t, validateRatesConfig(bad))

	bad = DefaultRatesConfig()
	bad.ExecutiveSalaryThreshold = -1
	require.Error(t, validateRatesConfig(bad))

	bad = DefaultRatesConfig()
	bad.DefaultBillingCurrency = ""
	require.Error(t, validateRatesConfig(bad))

	bad = DefaultRatesConfig()
	bad.CountryCurrencies["XX"] = CurrencyMapping{PricingPeg: "USD"}
	require.Error(t, validateRatesConfig(bad))
}
