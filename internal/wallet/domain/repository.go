package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListTransactionsFilter struct {
	AccountID snowflake.ID
	Type      TransactionType
	Status    TransactionStatus
	Limit     int
	Offset    int
}

type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *VirtualAccount) error
	FindAccountByOwner(ctx context.Context, db *gorm.DB, ownerType OwnerType, ownerID snowflake.ID) (*VirtualAccount, error)
	FindAccountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VirtualAccount, error)
	// FindAccountByIDForUpdate holds a row lock for the duration of the
	// surrounding transaction. Every balance check-and-write goes through
	// this read so concurrent debits serialize on the account row.
	FindAccountByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VirtualAccount, error)
	UpdateAccountTotals(ctx context.Context, db *gorm.DB, account *VirtualAccount) error

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *VirtualTransaction) error
	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VirtualTransaction, error)
	FindTransactionByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VirtualTransaction, error)
	UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status TransactionStatus) error
	ListTransactions(ctx context.Context, db *gorm.DB, filter ListTransactionsFilter) ([]VirtualTransaction, error)

	InsertRefundRequest(ctx context.Context, db *gorm.DB, req *RefundRequest) error
	FindRefundRequestByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RefundRequest, error)
	UpdateRefundRequest(ctx context.Context, db *gorm.DB, req *RefundRequest) error
}
