package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/commission/domain"
	pkgdb "github.com/hrm8/walletcore/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertConsultant(ctx context.Context, db *gorm.DB, consultant *domain.Consultant) error {
	return db.WithContext(ctx).Create(consultant).Error
}

func (r *repo) FindConsultantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Consultant, error) {
	var consultant domain.Consultant
	err := db.WithContext(ctx).First(&consultant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConsultantNotFound
		}
		return nil, err
	}
	return &consultant, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, commission *domain.Commission) error {
	return db.WithContext(ctx).Create(commission).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Commission, error) {
	var commission domain.Commission
	err := db.WithContext(ctx).First(&commission, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCommissionNotFound
		}
		return nil, err
	}
	return &commission, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Commission, error) {
	var commission domain.Commission
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM commissions WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&commission).Error
	if err != nil {
		return nil, err
	}
	if commission.ID == 0 {
		return nil, domain.ErrCommissionNotFound
	}
	return &commission, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, commission *domain.Commission) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commissions
		 SET status = ?, notes = ?, confirmed_at = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		commission.Status,
		commission.Notes,
		commission.ConfirmedAt,
		commission.PaidAt,
		commission.UpdatedAt,
		commission.ID,
	).Error
}

func (r *repo) ListByConsultant(ctx context.Context, db *gorm.DB, consultantID snowflake.ID, status domain.Status) ([]domain.Commission, error) {
	stmt := db.WithContext(ctx).Model(&domain.Commission{}).
		Where("consultant_id = ?", consultantID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}

	var commissions []domain.Commission
	if err := stmt.Order("created_at desc").Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}
