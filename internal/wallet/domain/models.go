package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type OwnerType string

const (
	OwnerCompany    OwnerType = "COMPANY"
	OwnerConsultant OwnerType = "CONSULTANT"
	OwnerPlatform   OwnerType = "HRM8_GLOBAL"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

// VirtualAccount is the balance keeper. One row per owner; mutated only
// through credit/debit, never deleted. total_credits and total_debits
// are lifetime counters and are never decremented, reversals move only
// the balance.
type VirtualAccount struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	OwnerType    OwnerType       `json:"owner_type" gorm:"type:text;not null;uniqueIndex:idx_accounts_owner"`
	OwnerID      snowflake.ID    `json:"owner_id" gorm:"not null;uniqueIndex:idx_accounts_owner"`
	Balance      decimal.Decimal `json:"balance" gorm:"type:numeric(18,2);not null"`
	TotalCredits decimal.Decimal `json:"total_credits" gorm:"type:numeric(18,2);not null"`
	TotalDebits  decimal.Decimal `json:"total_debits" gorm:"type:numeric(18,2);not null"`
	Status       AccountStatus   `json:"status" gorm:"type:text;not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null"`
}

func (VirtualAccount) TableName() string { return "virtual_accounts" }

type TransactionType string

const (
	TxnJobPostingDeduction   TransactionType = "JOB_POSTING_DEDUCTION"
	TxnSubscriptionPurchase  TransactionType = "SUBSCRIPTION_PURCHASE"
	TxnCommissionEarned      TransactionType = "COMMISSION_EARNED"
	TxnCommissionWithdrawal  TransactionType = "COMMISSION_WITHDRAWAL"
	TxnCommissionClawback    TransactionType = "COMMISSION_CLAWBACK"
	TxnAddonServiceCharge    TransactionType = "ADDON_SERVICE_CHARGE"
	TxnRefund                TransactionType = "REFUND"
	TxnManualAdjustment      TransactionType = "MANUAL_ADJUSTMENT"
)

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "PENDING"
	TxnCompleted TransactionStatus = "COMPLETED"
	TxnFailed    TransactionStatus = "FAILED"
)

// VirtualTransaction is an append-only ledger entry. Status moves only
// on withdrawal-style entries (PENDING to COMPLETED or FAILED); nothing
// else about a written row ever changes.
type VirtualTransaction struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	AccountID        snowflake.ID      `json:"account_id" gorm:"not null;index"`
	Type             TransactionType   `json:"type" gorm:"type:text;not null"`
	Amount           decimal.Decimal   `json:"amount" gorm:"type:numeric(18,2);not null"`
	Direction        Direction         `json:"direction" gorm:"type:text;not null"`
	BalanceAfter     decimal.Decimal   `json:"balance_after" gorm:"type:numeric(18,2);not null"`
	Status           TransactionStatus `json:"status" gorm:"type:text;not null;index"`
	PricingPeg       string            `json:"pricing_peg,omitempty" gorm:"type:text"`
	BillingCurrency  string            `json:"billing_currency,omitempty" gorm:"type:text"`
	PriceBookID      *snowflake.ID     `json:"price_book_id,omitempty"`
	PriceBookVersion *int              `json:"price_book_version,omitempty"`
	OverrideID       *snowflake.ID     `json:"override_id,omitempty"`
	ReferenceType    string            `json:"reference_type,omitempty" gorm:"type:text;index:idx_txn_reference"`
	ReferenceID      string            `json:"reference_id,omitempty" gorm:"type:text;index:idx_txn_reference"`
	CreatedBy        string            `json:"created_by,omitempty" gorm:"type:text"`
	Description      string            `json:"description,omitempty" gorm:"type:text"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null;index"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null"`
}

func (VirtualTransaction) TableName() string { return "virtual_transactions" }

type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundApproved RefundStatus = "APPROVED"
	RefundRejected RefundStatus = "REJECTED"
)

// RefundRequest is a request object, not a ledger entry. Approval
// performs a genuine credit; rejection touches nothing.
type RefundRequest struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	AccountID     snowflake.ID    `json:"account_id" gorm:"not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(18,2);not null"`
	Reason        string          `json:"reason" gorm:"type:text"`
	ReferenceType string          `json:"reference_type,omitempty" gorm:"type:text"`
	ReferenceID   string          `json:"reference_id,omitempty" gorm:"type:text"`
	Status        RefundStatus    `json:"status" gorm:"type:text;not null"`
	ResolvedBy    *string         `json:"resolved_by,omitempty" gorm:"type:text"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (RefundRequest) TableName() string { return "refund_requests" }

// TransactionMeta carries the pricing and reference context a ledger
// entry records about how its amount was derived.
type TransactionMeta struct {
	ReferenceType    string
	ReferenceID      string
	PricingPeg       string
	BillingCurrency  string
	PriceBookID      *snowflake.ID
	PriceBookVersion *int
	OverrideID       *snowflake.ID
	CreatedBy        string
	Description      string
}
