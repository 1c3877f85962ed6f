package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/hrm8/walletcore/internal/clock"
	companydomain "github.com/hrm8/walletcore/internal/company/domain"
	companyrepository "github.com/hrm8/walletcore/internal/company/repository"
	"github.com/hrm8/walletcore/internal/config"
	pricebookdomain "github.com/hrm8/walletcore/internal/pricebook/domain"
	"github.com/hrm8/walletcore/internal/pricebook/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pricingFixture struct {
	svc     pricebookdomain.Service
	db      *gorm.DB
	node    *snowflake.Node
	now     time.Time
	company *companydomain.Company
}

func setupPricing(t *testing.T) *pricingFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(
		&companydomain.Company{},
		&pricebookdomain.PriceBook{},
		&pricebookdomain.Product{},
		&pricebookdomain.PriceTier{},
		&pricebookdomain.EnterpriseOverride{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	company := &companydomain.Company{
		ID:              node.Generate(),
		Name:            "Acme Talent",
		CountryCode:     "IN",
		PricingPeg:      "INR",
		BillingCurrency: "INR",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(now),
		Rates:     &config.RatesConfigHolder{},
		Repo:      repository.Provide(),
		Companies: companyrepository.Provide(),
	})

	return &pricingFixture{svc: svc, db: db, node: node, now: now, company: company}
}

func (f *pricingFixture) seedBook(t *testing.T, peg, billing string, global bool, companyID *snowflake.ID) *pricebookdomain.PriceBook {
	t.Helper()
	book := &pricebookdomain.PriceBook{
		ID:              f.node.Generate(),
		Name:            fmt.Sprintf("%s-%s book", peg, billing),
		PricingPeg:      peg,
		BillingCurrency: billing,
		CompanyID:       companyID,
		IsGlobal:        global,
		Active:          true,
		Approved:        true,
		Version:         1,
		EffectiveFrom:   f.now.AddDate(0, -2, 0),
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	}
	if err := f.db.Create(book).Error; err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func (f *pricingFixture) seedProduct(t *testing.T, code string, executive bool) *pricebookdomain.Product {
	t.Helper()
	product := &pricebookdomain.Product{
		ID:              f.node.Generate(),
		Code:            code,
		Name:            code,
		ExecutiveSearch: executive,
		Active:          true,
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (f *pricingFixture) seedQuantityTier(t *testing.T, bookID, productID snowflake.ID, minQty int, maxQty *int, price int64) {
	t.Helper()
	tier := &pricebookdomain.PriceTier{
		ID:          f.node.Generate(),
		PriceBookID: bookID,
		ProductID:   productID,
		MinQuantity: &minQty,
		MaxQuantity: maxQty,
		Price:       decimal.NewFromInt(price),
		CreatedAt:   f.now,
	}
	if err := f.db.Create(tier).Error; err != nil {
		t.Fatalf("seed tier: %v", err)
	}
}

func intPtr(v int) *int { return &v }

func TestPriceForProductQuantityTiers(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	book := f.seedBook(t, "INR", "INR", false, nil)
	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, book.ID, product.ID, 1, intPtr(5), 10)
	f.seedQuantityTier(t, book.ID, product.ID, 6, nil, 8)

	quote, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 5, nil)
	if err != nil {
		t.Fatalf("price qty 5: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10 for qty 5, got %s", quote.Price)
	}

	quote, err = f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 6, nil)
	if err != nil {
		t.Fatalf("price qty 6: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected 8 for qty 6, got %s", quote.Price)
	}
	if quote.PriceBookID != book.ID || quote.PriceBookVersion != 1 {
		t.Fatalf("expected quote pinned to book v1, got %s v%d", quote.PriceBookID, quote.PriceBookVersion)
	}
}

func TestPriceForProductNoTier(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	book := f.seedBook(t, "INR", "INR", false, nil)
	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, book.ID, product.ID, 1, intPtr(5), 10)

	if _, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 100, nil); !errors.Is(err, pricebookdomain.ErrNoTierFound) {
		t.Fatalf("expected no tier, got %v", err)
	}
	if _, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 0, nil); !errors.Is(err, pricebookdomain.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	if _, err := f.svc.PriceForProduct(ctx, f.company.ID, "missing_product", 1, nil); !errors.Is(err, pricebookdomain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestRegionalBookBeatsGlobal(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	global := f.seedBook(t, "USD", "USD", true, nil)
	regional := f.seedBook(t, "INR", "INR", false, nil)
	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, global.ID, product.ID, 1, nil, 100)
	f.seedQuantityTier(t, regional.ID, product.ID, 1, nil, 80)

	quote, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 1, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.PriceBookID != regional.ID {
		t.Fatalf("expected regional book, got %s", quote.PriceBookID)
	}
	if quote.BillingCurrency != "INR" {
		t.Fatalf("expected INR quote, got %s", quote.BillingCurrency)
	}
}

func TestGlobalFallbackWhenNoRegionalPair(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	global := f.seedBook(t, "USD", "USD", true, nil)
	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, global.ID, product.ID, 1, nil, 100)

	quote, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 1, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.PriceBookID != global.ID {
		t.Fatalf("expected global fallback, got %s", quote.PriceBookID)
	}
}

func TestNoPriceBookAtAll(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	if _, err := f.svc.EffectiveBook(ctx, f.company.ID); !errors.Is(err, pricebookdomain.ErrNoPriceBook) {
		t.Fatalf("expected no price book, got %v", err)
	}
}

func TestAssignedBookBeatsRegional(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	regional := f.seedBook(t, "INR", "INR", false, nil)
	assigned := f.seedBook(t, "INR", "INR", false, &f.company.ID)
	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, regional.ID, product.ID, 1, nil, 80)
	f.seedQuantityTier(t, assigned.ID, product.ID, 1, nil, 70)

	if err := f.db.Model(&companydomain.Company{}).
		Where("id = ?", f.company.ID).
		Update("assigned_price_book_id", assigned.ID).Error; err != nil {
		t.Fatalf("assign book: %v", err)
	}

	quote, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 1, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.PriceBookID != assigned.ID {
		t.Fatalf("expected assigned book, got %s", quote.PriceBookID)
	}
}

func TestOverridePinnedBookWinsOverAssigned(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	assigned := f.seedBook(t, "INR", "INR", false, &f.company.ID)
	pinned := f.seedBook(t, "USD", "USD", false, nil)
	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, assigned.ID, product.ID, 1, nil, 70)
	f.seedQuantityTier(t, pinned.ID, product.ID, 1, nil, 60)

	if err := f.db.Model(&companydomain.Company{}).
		Where("id = ?", f.company.ID).
		Update("assigned_price_book_id", assigned.ID).Error; err != nil {
		t.Fatalf("assign book: %v", err)
	}

	override := &pricebookdomain.EnterpriseOverride{
		ID:            f.node.Generate(),
		CompanyID:     f.company.ID,
		PriceBookID:   &pinned.ID,
		Active:        true,
		EffectiveFrom: f.now.AddDate(0, -1, 0),
		CreatedAt:     f.now,
	}
	if err := f.db.Create(override).Error; err != nil {
		t.Fatalf("seed override: %v", err)
	}

	quote, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 1, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.PriceBookID != pinned.ID {
		t.Fatalf("expected override-pinned book, got %s", quote.PriceBookID)
	}
	if quote.OverrideID == nil || *quote.OverrideID != override.ID {
		t.Fatalf("expected quote to carry the override id")
	}
}

func TestExpiredBookIgnored(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	expired := f.seedBook(t, "INR", "INR", false, nil)
	past := f.now.AddDate(0, -1, 0)
	if err := f.db.Model(&pricebookdomain.PriceBook{}).
		Where("id = ?", expired.ID).
		Update("effective_to", past).Error; err != nil {
		t.Fatalf("expire book: %v", err)
	}

	product := f.seedProduct(t, "job_posting", false)
	f.seedQuantityTier(t, expired.ID, product.ID, 1, nil, 80)

	if _, err := f.svc.PriceForProduct(ctx, f.company.ID, "job_posting", 1, nil); !errors.Is(err, pricebookdomain.ErrNoPriceBook) {
		t.Fatalf("expected no price book once expired, got %v", err)
	}
}

func TestExecutiveSalaryBandPricing(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	book := f.seedBook(t, "INR", "INR", false, nil)
	product := f.seedProduct(t, "executive_search", true)

	lowMin := decimal.NewFromInt(200_000)
	lowMax := decimal.NewFromInt(300_000)
	highMin := decimal.NewFromInt(300_001)
	lowTier := &pricebookdomain.PriceTier{
		ID:            f.node.Generate(),
		PriceBookID:   book.ID,
		ProductID:     product.ID,
		SalaryBandMin: &lowMin,
		SalaryBandMax: &lowMax,
		Price:         decimal.NewFromInt(5000),
		CreatedAt:     f.now,
	}
	highTier := &pricebookdomain.PriceTier{
		ID:            f.node.Generate(),
		PriceBookID:   book.ID,
		ProductID:     product.ID,
		SalaryBandMin: &highMin,
		Price:         decimal.NewFromInt(9000),
		CreatedAt:     f.now,
	}
	if err := f.db.Create(lowTier).Error; err != nil {
		t.Fatalf("seed low tier: %v", err)
	}
	if err := f.db.Create(highTier).Error; err != nil {
		t.Fatalf("seed high tier: %v", err)
	}

	salary := decimal.NewFromInt(250_000)
	quote, err := f.svc.PriceForProduct(ctx, f.company.ID, "executive_search", 1, &salary)
	if err != nil {
		t.Fatalf("price low band: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected 5000 for low band, got %s", quote.Price)
	}

	salary = decimal.NewFromInt(500_000)
	quote, err = f.svc.PriceForProduct(ctx, f.company.ID, "executive_search", 1, &salary)
	if err != nil {
		t.Fatalf("price high band: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("expected 9000 for high band, got %s", quote.Price)
	}
}
