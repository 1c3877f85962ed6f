package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/wallet/domain"
	pkgdb "github.com/hrm8/walletcore/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.VirtualAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO virtual_accounts (
			id, owner_type, owner_id, balance, total_credits, total_debits, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_type, owner_id) DO NOTHING`,
		account.ID,
		account.OwnerType,
		account.OwnerID,
		account.Balance,
		account.TotalCredits,
		account.TotalDebits,
		account.Status,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindAccountByOwner(ctx context.Context, db *gorm.DB, ownerType domain.OwnerType, ownerID snowflake.ID) (*domain.VirtualAccount, error) {
	var account domain.VirtualAccount
	err := db.WithContext(ctx).
		First(&account, "owner_type = ? AND owner_id = ?", ownerType, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindAccountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VirtualAccount, error) {
	var account domain.VirtualAccount
	err := db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindAccountByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VirtualAccount, error) {
	var account domain.VirtualAccount
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM virtual_accounts WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (r *repo) UpdateAccountTotals(ctx context.Context, db *gorm.DB, account *domain.VirtualAccount) error {
	return db.WithContext(ctx).Exec(
		`UPDATE virtual_accounts
		 SET balance = ?, total_credits = ?, total_debits = ?, updated_at = ?
		 WHERE id = ?`,
		account.Balance,
		account.TotalCredits,
		account.TotalDebits,
		time.Now().UTC(),
		account.ID,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.VirtualTransaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VirtualTransaction, error) {
	var txn domain.VirtualTransaction
	err := db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repo) FindTransactionByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VirtualTransaction, error) {
	var txn domain.VirtualTransaction
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM virtual_transactions WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return &txn, nil
}

func (r *repo) UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TransactionStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE virtual_transactions SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, filter domain.ListTransactionsFilter) ([]domain.VirtualTransaction, error) {
	stmt := db.WithContext(ctx).Model(&domain.VirtualTransaction{}).
		Where("account_id = ?", filter.AccountID)

	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}

	var txns []domain.VirtualTransaction
	if err := stmt.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) InsertRefundRequest(ctx context.Context, db *gorm.DB, req *domain.RefundRequest) error {
	return db.WithContext(ctx).Create(req).Error
}

func (r *repo) FindRefundRequestByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM refund_requests WHERE id = ?`+pkgdb.LockClause(db), id).
		Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, domain.ErrRefundNotFound
	}
	return &req, nil
}

func (r *repo) UpdateRefundRequest(ctx context.Context, db *gorm.DB, req *domain.RefundRequest) error {
	return db.WithContext(ctx).Exec(
		`UPDATE refund_requests
		 SET status = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ?`,
		req.Status,
		req.ResolvedBy,
		req.ResolvedAt,
		time.Now().UTC(),
		req.ID,
	).Error
}
