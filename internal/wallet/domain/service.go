package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BalanceSummary struct {
	AccountID    snowflake.ID    `json:"account_id"`
	OwnerType    OwnerType       `json:"owner_type"`
	OwnerID      snowflake.ID    `json:"owner_id"`
	Balance      decimal.Decimal `json:"balance"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
}

type Service interface {
	// GetOrCreateAccount creates the account lazily on first access.
	GetOrCreateAccount(ctx context.Context, ownerType OwnerType, ownerID snowflake.ID) (*VirtualAccount, error)

	// Credit and Debit run in their own transaction. The Tx variants run
	// on a caller-supplied handle so a commission or payment can move
	// money atomically with its own writes.
	Credit(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, txnType TransactionType, meta TransactionMeta) (*VirtualTransaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, txnType TransactionType, meta TransactionMeta) (*VirtualTransaction, error)
	Debit(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, txnType TransactionType, meta TransactionMeta) (*VirtualTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, txnType TransactionType, meta TransactionMeta) (*VirtualTransaction, error)

	Balance(ctx context.Context, ownerType OwnerType, ownerID snowflake.ID) (*BalanceSummary, error)
	ListTransactions(ctx context.Context, filter ListTransactionsFilter) ([]VirtualTransaction, error)

	// RequestWithdrawal reduces the balance optimistically and records a
	// PENDING debit. CompleteWithdrawal only flips the status;
	// FailWithdrawal flips the status and restores the balance.
	RequestWithdrawal(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, meta TransactionMeta) (*VirtualTransaction, error)
	CompleteWithdrawal(ctx context.Context, transactionID snowflake.ID) error
	FailWithdrawal(ctx context.Context, transactionID snowflake.ID, reason string) error

	RequestRefund(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, reason string, meta TransactionMeta) (*RefundRequest, error)
	ApproveRefund(ctx context.Context, refundID snowflake.ID, resolvedBy string) (*VirtualTransaction, error)
	RejectRefund(ctx context.Context, refundID snowflake.ID, resolvedBy string) error
}

var (
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrAccountInactive     = errors.New("account_inactive")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrTransactionNotFound = errors.New("transaction_not_found")
	ErrRefundNotFound      = errors.New("refund_not_found")
	ErrInvalidTransition   = errors.New("invalid_transaction_state")
)

// InsufficientBalanceError wraps ErrInsufficientBalance with the
// itemized amounts callers surface to the user.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
	Currency  string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Currency != "" {
		return fmt.Sprintf("insufficient_balance: required %s %s, available %s %s",
			e.Required.StringFixed(2), e.Currency, e.Available.StringFixed(2), e.Currency)
	}
	return fmt.Sprintf("insufficient_balance: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}
