package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PriceBook is a versioned, time-bounded collection of product prices
// for a currency pair. Books are either global fallbacks, regional
// (matched by currency pair), or pinned to a single company.
type PriceBook struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name            string          `json:"name" gorm:"type:text;not null"`
	PricingPeg      string          `json:"pricing_peg" gorm:"type:text;not null;index:idx_price_books_pair"`
	BillingCurrency string          `json:"billing_currency" gorm:"type:text;not null;index:idx_price_books_pair"`
	CompanyID       *snowflake.ID   `json:"company_id,omitempty" gorm:"index"`
	IsGlobal        bool            `json:"is_global" gorm:"not null;default:false"`
	Active          bool            `json:"active" gorm:"not null;default:false"`
	Approved        bool            `json:"approved" gorm:"not null;default:false"`
	Version         int             `json:"version" gorm:"not null;default:1"`
	EffectiveFrom   time.Time       `json:"effective_from" gorm:"not null"`
	EffectiveTo     *time.Time      `json:"effective_to,omitempty"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"not null"`
}

func (PriceBook) TableName() string { return "price_books" }

// EffectiveAt reports whether the book's validity window covers now.
func (b *PriceBook) EffectiveAt(now time.Time) bool {
	if b.EffectiveFrom.After(now) {
		return false
	}
	return b.EffectiveTo == nil || !b.EffectiveTo.Before(now)
}

type Product struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Code            string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	ExecutiveSearch bool         `json:"executive_search" gorm:"not null;default:false"`
	Active          bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// PriceTier prices a product inside one book for either a quantity
// range or a salary-band range. A nil upper bound means open ended.
type PriceTier struct {
	ID            snowflake.ID     `json:"id" gorm:"primaryKey"`
	PriceBookID   snowflake.ID     `json:"price_book_id" gorm:"not null;index"`
	ProductID     snowflake.ID     `json:"product_id" gorm:"not null;index"`
	MinQuantity   *int             `json:"min_quantity,omitempty"`
	MaxQuantity   *int             `json:"max_quantity,omitempty"`
	SalaryBandMin *decimal.Decimal `json:"salary_band_min,omitempty" gorm:"type:numeric(18,2)"`
	SalaryBandMax *decimal.Decimal `json:"salary_band_max,omitempty" gorm:"type:numeric(18,2)"`
	Price         decimal.Decimal  `json:"price" gorm:"type:numeric(18,2);not null"`
	CreatedAt     time.Time        `json:"created_at" gorm:"not null"`
}

func (PriceTier) TableName() string { return "price_tiers" }

// MatchesQuantity applies the quantity-range rule.
func (t *PriceTier) MatchesQuantity(qty int) bool {
	if t.MinQuantity == nil {
		return false
	}
	if qty < *t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || qty <= *t.MaxQuantity
}

// MatchesSalary applies the salary-band rule.
func (t *PriceTier) MatchesSalary(salary decimal.Decimal) bool {
	if t.SalaryBandMin == nil {
		return false
	}
	if salary.LessThan(*t.SalaryBandMin) {
		return false
	}
	return t.SalaryBandMax == nil || !salary.GreaterThan(*t.SalaryBandMax)
}

// EnterpriseOverride pins a company to a specific book or currency pair
// for a bounded window. Takes precedence over every other resolution
// step while active.
type EnterpriseOverride struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	CompanyID       snowflake.ID  `json:"company_id" gorm:"not null;index"`
	PriceBookID     *snowflake.ID `json:"price_book_id,omitempty"`
	PricingPeg      *string       `json:"pricing_peg,omitempty" gorm:"type:text"`
	BillingCurrency *string       `json:"billing_currency,omitempty" gorm:"type:text"`
	Active          bool          `json:"active" gorm:"not null;default:true"`
	EffectiveFrom   time.Time     `json:"effective_from" gorm:"not null"`
	EffectiveTo     *time.Time    `json:"effective_to,omitempty"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null"`
}

func (EnterpriseOverride) TableName() string { return "enterprise_overrides" }
