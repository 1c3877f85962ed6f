package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/hrm8/walletcore/internal/audit/domain"
	auditrepository "github.com/hrm8/walletcore/internal/audit/repository"
	auditservice "github.com/hrm8/walletcore/internal/audit/service"
	"github.com/hrm8/walletcore/internal/clock"
	companydomain "github.com/hrm8/walletcore/internal/company/domain"
	companyrepository "github.com/hrm8/walletcore/internal/company/repository"
	"github.com/hrm8/walletcore/internal/config"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupCurrencyService(t *testing.T) (currencydomain.Service, *gorm.DB, *snowflake.Node) {
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

	if err := db.AutoMigrate(&companydomain.Company{}, &auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  auditrepository.Provide(),
	})

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Rates:     &config.RatesConfigHolder{},
		Companies: companyrepository.Provide(),
		Audit:     audit,
	})
	return svc, db, node
}

func seedCompany(t *testing.T, db *gorm.DB, node *snowflake.Node) *companydomain.Company {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	company := &companydomain.Company{
		ID:          node.Generate(),
		Name:        "Acme Talent",
		CountryCode: "IN",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return company
}

func TestAssignResolvesCountry(t *testing.T) {
	svc, db, node := setupCurrencyService(t)
	ctx := context.Background()
	company := seedCompany(t, db, node)

	assignment, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "in"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.PricingPeg != "INR" || assignment.BillingCurrency != "INR" {
		t.Fatalf("expected INR/INR, got %s/%s", assignment.PricingPeg, assignment.BillingCurrency)
	}
	if assignment.Locked {
		t.Fatalf("assignment must not lock the currency")
	}
}

func TestAssignUnknownCountryFallsBack(t *testing.T) {
	svc, db, node := setupCurrencyService(t)
	ctx := context.Background()
	company := seedCompany(t, db, node)

	assignment, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "ZZ"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.PricingPeg != "USD" || assignment.BillingCurrency != "USD" {
		t.Fatalf("expected USD fallback, got %s/%s", assignment.PricingPeg, assignment.BillingCurrency)
	}
}

func TestAssignFailsOnceLocked(t *testing.T) {
	svc, db, node := setupCurrencyService(t)
	ctx := context.Background()
	company := seedCompany(t, db, node)

	if _, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "IN"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Lock(ctx, company.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "US"})
	if !errors.Is(err, currencydomain.ErrCurrencyLocked) {
		t.Fatalf("expected currency locked, got %v", err)
	}
}

func TestLockIsIdempotent(t *testing.T) {
	svc, db, node := setupCurrencyService(t)
	ctx := context.Background()
	company := seedCompany(t, db, node)

	if _, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "IN"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Lock(ctx, company.ID); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	var locked companydomain.Company
	if err := db.First(&locked, "id = ?", company.ID).Error; err != nil {
		t.Fatalf("reload company: %v", err)
	}
	firstLockedAt := locked.CurrencyLockedAt

	if err := svc.Lock(ctx, company.ID); err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if err := db.First(&locked, "id = ?", company.ID).Error; err != nil {
		t.Fatalf("reload company: %v", err)
	}
	if locked.CurrencyLockedAt == nil || !locked.CurrencyLockedAt.Equal(*firstLockedAt) {
		t.Fatalf("expected lock timestamp to stay %v, got %v", firstLockedAt, locked.CurrencyLockedAt)
	}
}

func TestValidateLock(t *testing.T) {
	svc, db, node := setupCurrencyService(t)
	ctx := context.Background()
	company := seedCompany(t, db, node)

	if _, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "IN"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Unlocked companies accept any currency.
	if err := svc.ValidateLock(ctx, company.ID, "USD"); err != nil {
		t.Fatalf("validate before lock: %v", err)
	}

	if err := svc.Lock(ctx, company.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := svc.ValidateLock(ctx, company.ID, "inr"); err != nil {
		t.Fatalf("validate matching currency: %v", err)
	}
	if err := svc.ValidateLock(ctx, company.ID, "USD"); !errors.Is(err, currencydomain.ErrCurrencyMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := svc.ValidateLock(ctx, company.ID, " "); !errors.Is(err, currencydomain.ErrInvalidCurrency) {
		t.Fatalf("expected invalid currency, got %v", err)
	}
}

func TestEmergencyOverrideClearsLockAndAudits(t *testing.T) {
	svc, db, node := setupCurrencyService(t)
	ctx := context.Background()
	company := seedCompany(t, db, node)

	if _, err := svc.Assign(ctx, currencydomain.AssignRequest{CompanyID: company.ID, CountryCode: "IN"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Lock(ctx, company.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := svc.EmergencyOverride(ctx, currencydomain.OverrideRequest{
		CompanyID:       company.ID,
		PricingPeg:      "USD",
		BillingCurrency: "USD",
		ActorID:         "admin-7",
	}); !errors.Is(err, currencydomain.ErrMissingReason) {
		t.Fatalf("expected missing reason, got %v", err)
	}

	assignment, err := svc.EmergencyOverride(ctx, currencydomain.OverrideRequest{
		CompanyID:       company.ID,
		PricingPeg:      "USD",
		BillingCurrency: "USD",
		Reason:          "contract renegotiated in USD",
		ActorID:         "admin-7",
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if assignment.BillingCurrency != "USD" {
		t.Fatalf("expected USD after override, got %s", assignment.BillingCurrency)
	}

	var reloaded companydomain.Company
	if err := db.First(&reloaded, "id = ?", company.ID).Error; err != nil {
		t.Fatalf("reload company: %v", err)
	}
	if reloaded.CurrencyLockedAt != nil {
		t.Fatalf("expected lock cleared, got %v", reloaded.CurrencyLockedAt)
	}

	var auditCount int64
	if err := db.Model(&auditdomain.AuditLog{}).Where("action = ?", "currency.emergency_override").Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if auditCount != 1 {
		t.Fatalf("expected 1 audit row, got %d", auditCount)
	}
}
