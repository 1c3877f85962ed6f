package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PriceQuote is the outcome of a product lookup: the unit price plus
// everything a ledger entry needs to record how it was derived.
type PriceQuote struct {
	Price            decimal.Decimal `json:"price"`
	PricingPeg       string          `json:"pricing_peg"`
	BillingCurrency  string          `json:"billing_currency"`
	PriceBookID      snowflake.ID    `json:"price_book_id"`
	PriceBookVersion int             `json:"price_book_version"`
	TierID           snowflake.ID    `json:"tier_id"`
	ProductID        snowflake.ID    `json:"product_id"`
	OverrideID       *snowflake.ID   `json:"override_id,omitempty"`
}

type Service interface {
	// EffectiveBook resolves with precedence: active enterprise override
	// with a pinned book, then the company's assigned book, then the best
	// regional match for the company's currency pair, then the global
	// fallback.
	EffectiveBook(ctx context.Context, companyID snowflake.ID) (*PriceBook, error)
	// PriceForProduct resolves the book, finds the product, then matches a
	// tier. Executive-search products with a salary range match by salary
	// band; everything else matches by quantity. Highest matching lower
	// bound wins.
	PriceForProduct(ctx context.Context, companyID snowflake.ID, productCode string, quantity int, salaryRange *decimal.Decimal) (*PriceQuote, error)
}

var (
	ErrNoPriceBook     = errors.New("no_price_book")
	ErrNoTierFound     = errors.New("no_price_tier")
	ErrProductNotFound = errors.New("product_not_found")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)
