package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AwardRequest is the direct-confirm entry path: the commission is
// created CONFIRMED and the consultant's wallet is credited in the same
// transaction.
type AwardRequest struct {
	ConsultantID   snowflake.ID     `json:"consultant_id"`
	JobID          *snowflake.ID    `json:"job_id,omitempty"`
	SubscriptionID *snowflake.ID    `json:"subscription_id,omitempty"`
	Type           CommissionType   `json:"type"`
	PaymentAmount  decimal.Decimal  `json:"payment_amount"`
	Currency       string           `json:"currency"`
	RateOverride   *decimal.Decimal `json:"rate_override,omitempty"`
	CreatedBy      string           `json:"created_by,omitempty"`
}

// RequestCommission is the request entry path: the commission is
// created PENDING and money moves only at Confirm.
type RequestCommission struct {
	ConsultantID   snowflake.ID     `json:"consultant_id"`
	JobID          *snowflake.ID    `json:"job_id,omitempty"`
	SubscriptionID *snowflake.ID    `json:"subscription_id,omitempty"`
	Type           CommissionType   `json:"type"`
	PaymentAmount  decimal.Decimal  `json:"payment_amount"`
	Currency       string           `json:"currency"`
	RateOverride   *decimal.Decimal `json:"rate_override,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

type DisputeResolution string

const (
	ResolutionValid   DisputeResolution = "VALID"
	ResolutionInvalid DisputeResolution = "INVALID"
)

type Service interface {
	Award(ctx context.Context, req AwardRequest) (*Commission, error)
	Request(ctx context.Context, req RequestCommission) (*Commission, error)
	// Confirm moves PENDING to CONFIRMED and credits the consultant.
	// Confirming an already CONFIRMED commission is a no-op.
	Confirm(ctx context.Context, id snowflake.ID) (*Commission, error)
	// MarkAsPaid records payout processing. Money already moved at
	// Confirm; this is a status and timestamp change only.
	MarkAsPaid(ctx context.Context, id snowflake.ID) (*Commission, error)
	Dispute(ctx context.Context, id snowflake.ID, reason string) (*Commission, error)
	ResolveDispute(ctx context.Context, id snowflake.ID, resolution DisputeResolution, reason string) (*Commission, error)
	// Clawback reverses the credit with a compensating debit. A PENDING
	// commission is cancelled instead; nothing was ever credited.
	Clawback(ctx context.Context, id snowflake.ID, reason string) (*Commission, error)
	Get(ctx context.Context, id snowflake.ID) (*Commission, error)
}

var (
	ErrCommissionNotFound     = errors.New("commission_not_found")
	ErrConsultantNotFound     = errors.New("consultant_not_found")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrInvalidPaymentAmount   = errors.New("invalid_payment_amount")
	ErrInvalidRate            = errors.New("invalid_commission_rate")
	ErrMissingSource          = errors.New("missing_commission_source")
)
