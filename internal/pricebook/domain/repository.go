package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBook(ctx context.Context, db *gorm.DB, book *PriceBook) error
	InsertProduct(ctx context.Context, db *gorm.DB, product *Product) error
	InsertTier(ctx context.Context, db *gorm.DB, tier *PriceTier) error
	InsertOverride(ctx context.Context, db *gorm.DB, override *EnterpriseOverride) error

	FindBookByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PriceBook, error)
	// FindActiveOverride returns the newest active override covering now,
	// or nil when the company has none.
	FindActiveOverride(ctx context.Context, db *gorm.DB, companyID snowflake.ID, now time.Time) (*EnterpriseOverride, error)
	// FindBestRegionalBook picks the active+approved book for the currency
	// pair with the most recent effective_from covering now.
	FindBestRegionalBook(ctx context.Context, db *gorm.DB, pricingPeg, billingCurrency string, now time.Time) (*PriceBook, error)
	FindGlobalBook(ctx context.Context, db *gorm.DB, now time.Time) (*PriceBook, error)
	FindProductByCode(ctx context.Context, db *gorm.DB, code string) (*Product, error)
	ListTiers(ctx context.Context, db *gorm.DB, priceBookID, productID snowflake.ID) ([]PriceTier, error)
}
