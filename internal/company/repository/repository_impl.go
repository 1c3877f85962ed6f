package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/company/domain"
	pkgdb "github.com/hrm8/walletcore/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Create(company).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).First(&company, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCompanyNotFound
		}
		return nil, err
	}
	return &company, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM companies WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, domain.ErrCompanyNotFound
	}
	return &company, nil
}

func (r *repo) UpdateCurrency(ctx context.Context, db *gorm.DB, id snowflake.ID, pricingPeg, billingCurrency string, lockedAt *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE companies
		 SET pricing_peg = ?, billing_currency = ?, currency_locked_at = ?, updated_at = ?
		 WHERE id = ?`,
		pricingPeg,
		billingCurrency,
		lockedAt,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetCurrencyLock(ctx context.Context, db *gorm.DB, id snowflake.ID, lockedAt time.Time) error {
	// Guarded update keeps the first lock timestamp under concurrent calls.
	return db.WithContext(ctx).Exec(
		`UPDATE companies
		 SET currency_locked_at = ?, updated_at = ?
		 WHERE id = ? AND currency_locked_at IS NULL`,
		lockedAt,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) AssignPriceBook(ctx context.Context, db *gorm.DB, id snowflake.ID, priceBookID *snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE companies SET assigned_price_book_id = ?, updated_at = ? WHERE id = ?`,
		priceBookID,
		time.Now().UTC(),
		id,
	).Error
}
