package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AssignRequest struct {
	CompanyID   snowflake.ID `json:"company_id"`
	CountryCode string       `json:"country_code"`
}

type OverrideRequest struct {
	CompanyID       snowflake.ID `json:"company_id"`
	PricingPeg      string       `json:"pricing_peg"`
	BillingCurrency string       `json:"billing_currency"`
	Reason          string       `json:"reason"`
	ActorID         string       `json:"actor_id"`
}

type Assignment struct {
	CompanyID       snowflake.ID `json:"company_id"`
	PricingPeg      string       `json:"pricing_peg"`
	BillingCurrency string       `json:"billing_currency"`
	Locked          bool         `json:"locked"`
}

type Service interface {
	// Assign resolves the country to a currency pair and persists it.
	// Fails once the company's currency is locked.
	Assign(ctx context.Context, req AssignRequest) (*Assignment, error)
	// Lock stamps currency_locked_at. Calling it on an already locked
	// company is a no-op, not an error.
	Lock(ctx context.Context, companyID snowflake.ID) error
	LockTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID) error
	// ValidateLock fails with ErrCurrencyMismatch when the company is
	// locked to a different billing currency. Runs before every
	// currency-bearing debit.
	ValidateLock(ctx context.Context, companyID snowflake.ID, expectedCurrency string) error
	ValidateLockTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, expectedCurrency string) error
	// EmergencyOverride is the one sanctioned bypass of the lock. It
	// clears the lock, rewrites the pair, and writes an audit record in
	// the same transaction.
	EmergencyOverride(ctx context.Context, req OverrideRequest) (*Assignment, error)
	Resolve(ctx context.Context, companyID snowflake.ID) (*Assignment, error)
}

var (
	ErrCurrencyLocked   = errors.New("currency_locked")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
	ErrInvalidCountry   = errors.New("invalid_country_code")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrMissingReason    = errors.New("missing_override_reason")
)
