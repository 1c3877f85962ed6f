package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/pricebook/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBook(ctx context.Context, db *gorm.DB, book *domain.PriceBook) error {
	return db.WithContext(ctx).Create(book).Error
}

func (r *repo) InsertProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) InsertTier(ctx context.Context, db *gorm.DB, tier *domain.PriceTier) error {
	return db.WithContext(ctx).Create(tier).Error
}

func (r *repo) InsertOverride(ctx context.Context, db *gorm.DB, override *domain.EnterpriseOverride) error {
	return db.WithContext(ctx).Create(override).Error
}

func (r *repo) FindBookByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PriceBook, error) {
	var book domain.PriceBook
	err := db.WithContext(ctx).First(&book, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoPriceBook
		}
		return nil, err
	}
	return &book, nil
}

func (r *repo) FindActiveOverride(ctx context.Context, db *gorm.DB, companyID snowflake.ID, now time.Time) (*domain.EnterpriseOverride, error) {
	var overrides []domain.EnterpriseOverride
	err := db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Where("effective_from <= ?", now).
		Where("effective_to IS NULL OR effective_to >= ?", now).
		Order("effective_from desc").
		Limit(1).
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return nil, nil
	}
	return &overrides[0], nil
}

func (r *repo) FindBestRegionalBook(ctx context.Context, db *gorm.DB, pricingPeg, billingCurrency string, now time.Time) (*domain.PriceBook, error) {
	var books []domain.PriceBook
	err := db.WithContext(ctx).
		Where("pricing_peg = ? AND billing_currency = ?", pricingPeg, billingCurrency).
		Where("active = ? AND approved = ?", true, true).
		Where("company_id IS NULL AND is_global = ?", false).
		Where("effective_from <= ?", now).
		Where("effective_to IS NULL OR effective_to >= ?", now).
		Order("effective_from desc").
		Limit(1).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return &books[0], nil
}

func (r *repo) FindGlobalBook(ctx context.Context, db *gorm.DB, now time.Time) (*domain.PriceBook, error) {
	var books []domain.PriceBook
	err := db.WithContext(ctx).
		Where("is_global = ? AND active = ? AND approved = ?", true, true, true).
		Where("effective_from <= ?", now).
		Where("effective_to IS NULL OR effective_to >= ?", now).
		Order("effective_from desc").
		Limit(1).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return &books[0], nil
}

func (r *repo) FindProductByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).
		First(&product, "code = ? AND active = ?", strings.TrimSpace(code), true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *repo) ListTiers(ctx context.Context, db *gorm.DB, priceBookID, productID snowflake.ID) ([]domain.PriceTier, error) {
	var tiers []domain.PriceTier
	err := db.WithContext(ctx).
		Where("price_book_id = ? AND product_id = ?", priceBookID, productID).
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}
