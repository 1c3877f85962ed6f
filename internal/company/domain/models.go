package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Company carries only the fields the wallet core owns. The wider ATS
// profile (users, branding, candidates) lives with other services.
type Company struct {
	ID                  snowflake.ID  `json:"id" gorm:"primaryKey"`
	Name                string        `json:"name" gorm:"type:text;not null"`
	CountryCode         string        `json:"country_code" gorm:"type:text"`
	PricingPeg          string        `json:"pricing_peg" gorm:"type:text"`
	BillingCurrency     string        `json:"billing_currency" gorm:"type:text"`
	CurrencyLockedAt    *time.Time    `json:"currency_locked_at,omitempty"`
	AssignedPriceBookID *snowflake.ID `json:"assigned_price_book_id,omitempty" gorm:"index"`
	CreatedAt           time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time     `json:"updated_at" gorm:"not null"`
}

func (Company) TableName() string { return "companies" }

func (c *Company) CurrencyLocked() bool {
	return c.CurrencyLockedAt != nil
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	// FindByIDForUpdate takes a row lock so currency assignment and the
	// lock timestamp cannot race with a concurrent payment.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	UpdateCurrency(ctx context.Context, db *gorm.DB, id snowflake.ID, pricingPeg, billingCurrency string, lockedAt *time.Time) error
	SetCurrencyLock(ctx context.Context, db *gorm.DB, id snowflake.ID, lockedAt time.Time) error
	AssignPriceBook(ctx context.Context, db *gorm.DB, id snowflake.ID, priceBookID *snowflake.ID) error
}

var ErrCompanyNotFound = errors.New("company_not_found")
