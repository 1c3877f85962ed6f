package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/payment/domain"
	pkgdb "github.com/hrm8/walletcore/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertJob(ctx context.Context, db *gorm.DB, job *domain.Job) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindJobByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Job, error) {
	var job domain.Job
	err := db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *repo) FindJobByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Job, error) {
	var job domain.Job
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM jobs WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (r *repo) UpdateJobPayment(ctx context.Context, db *gorm.DB, job *domain.Job) error {
	return db.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET payment_status = ?, payment_amount = ?, payment_currency = ?,
		     price_book_id = ?, price_book_version = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		job.PaymentStatus,
		job.PaymentAmount,
		job.PaymentCurrency,
		job.PriceBookID,
		job.PriceBookVersion,
		job.PaidAt,
		time.Now().UTC(),
		job.ID,
	).Error
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindSubscriptionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindSubscriptionByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM subscriptions WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) UpdateSubscriptionUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, jobsUsed int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET jobs_used = ?, updated_at = ? WHERE id = ?`,
		jobsUsed,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.SubscriptionStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}
