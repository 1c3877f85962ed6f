package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

type JobStatus string

const (
	JobDraft     JobStatus = "DRAFT"
	JobPublished JobStatus = "PUBLISHED"
	JobClosed    JobStatus = "CLOSED"
)

// Job carries only the payment-facing slice of a job posting. The full
// posting (description, pipeline, applicants) lives with the job
// service; these fields are the ledger's contract with it.
type Job struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey"`
	CompanyID        snowflake.ID     `json:"company_id" gorm:"not null;index"`
	Title            string           `json:"title" gorm:"type:text"`
	ServicePackage   string           `json:"service_package" gorm:"type:text;not null"`
	SalaryMax        *decimal.Decimal `json:"salary_max,omitempty" gorm:"type:numeric(18,2)"`
	Status           JobStatus        `json:"status" gorm:"type:text;not null"`
	PaymentStatus    PaymentStatus    `json:"payment_status" gorm:"type:text;not null"`
	PaymentAmount    *decimal.Decimal `json:"payment_amount,omitempty" gorm:"type:numeric(18,2)"`
	PaymentCurrency  string           `json:"payment_currency,omitempty" gorm:"type:text"`
	PriceBookID      *snowflake.ID    `json:"price_book_id,omitempty"`
	PriceBookVersion *int             `json:"price_book_version,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"not null"`
}

func (Job) TableName() string { return "jobs" }

type BillingCycle string

const (
	CycleMonthly BillingCycle = "MONTHLY"
	CycleAnnual  BillingCycle = "ANNUAL"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription. A nil JobQuota means unlimited postings; JobsUsed only
// ever grows and never exceeds a non-nil quota.
type Subscription struct {
	ID             snowflake.ID       `json:"id" gorm:"primaryKey"`
	CompanyID      snowflake.ID       `json:"company_id" gorm:"not null;index"`
	PlanCode       string             `json:"plan_code" gorm:"type:text;not null"`
	BasePrice      decimal.Decimal    `json:"base_price" gorm:"type:numeric(18,2);not null"`
	Currency       string             `json:"currency" gorm:"type:text;not null"`
	BillingCycle   BillingCycle       `json:"billing_cycle" gorm:"type:text;not null"`
	JobQuota       *int               `json:"job_quota,omitempty"`
	JobsUsed       int                `json:"jobs_used" gorm:"not null;default:0"`
	PrepaidBalance decimal.Decimal    `json:"prepaid_balance" gorm:"type:numeric(18,2);not null"`
	Status         SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	StartDate      time.Time          `json:"start_date" gorm:"not null"`
	EndDate        time.Time          `json:"end_date" gorm:"not null"`
	RenewalDate    time.Time          `json:"renewal_date" gorm:"not null"`
	CreatedAt      time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time          `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

type Repository interface {
	InsertJob(ctx context.Context, db *gorm.DB, job *Job) error
	FindJobByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindJobByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	UpdateJobPayment(ctx context.Context, db *gorm.DB, job *Job) error

	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindSubscriptionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindSubscriptionByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	UpdateSubscriptionUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, jobsUsed int) error
	UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status SubscriptionStatus) error
}
