package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
)

const SelfManagedPackage = "self-managed"

type PayJobRequest struct {
	CompanyID snowflake.ID `json:"company_id"`
	JobID     snowflake.ID `json:"job_id"`
	UserID    string       `json:"user_id,omitempty"`
}

type PayJobResult struct {
	Job         *Job                              `json:"job"`
	Transaction *walletdomain.VirtualTransaction  `json:"transaction,omitempty"`
	Skipped     bool                              `json:"skipped"`
	AlreadyPaid bool                              `json:"already_paid"`
}

type PurchaseSubscriptionRequest struct {
	CompanyID    snowflake.ID `json:"company_id"`
	PlanCode     string       `json:"plan_code"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	JobQuota     *int         `json:"job_quota,omitempty"`
	UserID       string       `json:"user_id,omitempty"`
}

type PurchaseSubscriptionResult struct {
	Subscription *Subscription                    `json:"subscription"`
	Transaction  *walletdomain.VirtualTransaction `json:"transaction"`
}

type Service interface {
	// PayForJobFromWallet debits the company wallet for a job posting
	// and marks the job paid in the same transaction. Self-managed
	// postings short-circuit with no money movement; already paid jobs
	// return without a second debit.
	PayForJobFromWallet(ctx context.Context, req PayJobRequest) (*PayJobResult, error)
	PurchaseSubscription(ctx context.Context, req PurchaseSubscriptionRequest) (*PurchaseSubscriptionResult, error)
	// ConsumeJobQuota increments jobs_used, rejecting once a non-nil
	// quota is exhausted.
	ConsumeJobQuota(ctx context.Context, subscriptionID snowflake.ID) (*Subscription, error)
}

var (
	ErrJobNotFound          = errors.New("job_not_found")
	ErrJobCompanyMismatch   = errors.New("job_company_mismatch")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrSubscriptionInactive = errors.New("subscription_inactive")
	ErrQuotaExhausted       = errors.New("job_quota_exhausted")
	ErrInvalidPlan          = errors.New("invalid_plan_code")
)
