package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/clock"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	"github.com/hrm8/walletcore/internal/events"
	"github.com/hrm8/walletcore/internal/observability/metrics"
	"github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Currency currencydomain.Service
	Outbox   *events.Outbox   `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	currency currencydomain.Service
	outbox   *events.Outbox
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("wallet.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		currency: p.Currency,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
	}
}

func (s *Service) GetOrCreateAccount(ctx context.Context, ownerType domain.OwnerType, ownerID snowflake.ID) (*domain.VirtualAccount, error) {
	account, err := s.repo.FindAccountByOwner(ctx, s.db, ownerType, ownerID)
	if err == nil {
		return account, nil
	}
	if err != domain.ErrAccountNotFound {
		return nil, err
	}

	now := s.clock.Now()
	fresh := &domain.VirtualAccount{
		ID:           s.genID.Generate(),
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		Balance:      decimal.Zero,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		Status:       domain.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// ON CONFLICT DO NOTHING, so a concurrent creator wins quietly and
	// the re-read below returns whichever row landed first.
	if err := s.repo.InsertAccount(ctx, s.db, fresh); err != nil {
		return nil, err
	}
	return s.repo.FindAccountByOwner(ctx, s.db, ownerType, ownerID)
}

func (s *Service) Credit(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, txnType domain.TransactionType, meta domain.TransactionMeta) (*domain.VirtualTransaction, error) {
	var txn *domain.VirtualTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.CreditTx(ctx, tx, accountID, amount, txnType, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, txnType domain.TransactionType, meta domain.TransactionMeta) (*domain.VirtualTransaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := s.repo.FindAccountByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountActive {
		return nil, domain.ErrAccountInactive
	}

	balanceAfter := account.Balance.Add(amount)
	txn := s.buildTransaction(account.ID, amount, domain.DirectionCredit, balanceAfter, domain.TxnCompleted, txnType, meta)
	if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	account.Balance = balanceAfter
	account.TotalCredits = account.TotalCredits.Add(amount)
	if err := s.repo.UpdateAccountTotals(ctx, tx, account); err != nil {
		return nil, err
	}

	if err := s.lockCurrencyIfCompany(ctx, tx, account, meta); err != nil {
		return nil, err
	}

	if err := s.publishLedgerEvent(ctx, tx, events.EventWalletCredited, account, txn); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordWalletOperation(ctx, string(domain.DirectionCredit), string(txnType))
	}
	return txn, nil
}

func (s *Service) Debit(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, txnType domain.TransactionType, meta domain.TransactionMeta) (*domain.VirtualTransaction, error) {
	var txn *domain.VirtualTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.DebitTx(ctx, tx, accountID, amount, txnType, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, txnType domain.TransactionType, meta domain.TransactionMeta) (*domain.VirtualTransaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := s.repo.FindAccountByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountActive {
		return nil, domain.ErrAccountInactive
	}

	// Currency mismatch fails fast, before the balance is examined.
	if account.OwnerType == domain.OwnerCompany && strings.TrimSpace(meta.BillingCurrency) != "" {
		if err := s.currency.ValidateLockTx(ctx, tx, account.OwnerID, meta.BillingCurrency); err != nil {
			if s.metrics != nil {
				s.metrics.RecordWalletFailure(ctx, string(domain.DirectionDebit), "currency_mismatch")
			}
			return nil, err
		}
	}

	if account.Balance.LessThan(amount) {
		if s.metrics != nil {
			s.metrics.RecordWalletFailure(ctx, string(domain.DirectionDebit), "insufficient_balance")
		}
		return nil, &domain.InsufficientBalanceError{
			Required:  amount,
			Available: account.Balance,
			Currency:  meta.BillingCurrency,
		}
	}

	balanceAfter := account.Balance.Sub(amount)
	txn := s.buildTransaction(account.ID, amount, domain.DirectionDebit, balanceAfter, domain.TxnCompleted, txnType, meta)
	if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	account.Balance = balanceAfter
	account.TotalDebits = account.TotalDebits.Add(amount)
	if err := s.repo.UpdateAccountTotals(ctx, tx, account); err != nil {
		return nil, err
	}

	// The first successful debit locks the company's currency.
	if err := s.lockCurrencyIfCompany(ctx, tx, account, meta); err != nil {
		return nil, err
	}

	if err := s.publishLedgerEvent(ctx, tx, events.EventWalletDebited, account, txn); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordWalletOperation(ctx, string(domain.DirectionDebit), string(txnType))
	}
	return txn, nil
}

func (s *Service) Balance(ctx context.Context, ownerType domain.OwnerType, ownerID snowflake.ID) (*domain.BalanceSummary, error) {
	account, err := s.repo.FindAccountByOwner(ctx, s.db, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceSummary{
		AccountID:    account.ID,
		OwnerType:    account.OwnerType,
		OwnerID:      account.OwnerID,
		Balance:      account.Balance,
		TotalCredits: account.TotalCredits,
		TotalDebits:  account.TotalDebits,
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.ListTransactionsFilter) ([]domain.VirtualTransaction, error) {
	return s.repo.ListTransactions(ctx, s.db, filter)
}

func (s *Service) RequestWithdrawal(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, meta domain.TransactionMeta) (*domain.VirtualTransaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var txn *domain.VirtualTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindAccountByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountActive {
			return domain.ErrAccountInactive
		}
		if account.Balance.LessThan(amount) {
			return &domain.InsufficientBalanceError{
				Required:  amount,
				Available: account.Balance,
			}
		}

		// Balance comes out now; the entry stays PENDING until an admin
		// settles it one way or the other.
		balanceAfter := account.Balance.Sub(amount)
		txn = s.buildTransaction(account.ID, amount, domain.DirectionDebit, balanceAfter, domain.TxnPending, domain.TxnCommissionWithdrawal, meta)
		if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		account.Balance = balanceAfter
		account.TotalDebits = account.TotalDebits.Add(amount)
		if err := s.repo.UpdateAccountTotals(ctx, tx, account); err != nil {
			return err
		}

		return s.publishLedgerEvent(ctx, tx, events.EventWithdrawalRequested, account, txn)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordWalletOperation(ctx, string(domain.DirectionDebit), string(domain.TxnCommissionWithdrawal))
	}
	return txn, nil
}

func (s *Service) CompleteWithdrawal(ctx context.Context, transactionID snowflake.ID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txn, err := s.withdrawalForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateTransactionStatus(ctx, tx, txn.ID, domain.TxnCompleted); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				Type:      events.EventWithdrawalCompleted,
				Payload:   map[string]any{"transaction_id": txn.ID.String()},
				DedupeKey: "withdrawal_completed:" + txn.ID.String(),
			})
		}
		return nil
	})
}

func (s *Service) FailWithdrawal(ctx context.Context, transactionID snowflake.ID, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txn, err := s.withdrawalForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateTransactionStatus(ctx, tx, txn.ID, domain.TxnFailed); err != nil {
			return err
		}

		// Compensating restore. The lifetime counters stay as written;
		// only the balance returns.
		account, err := s.repo.FindAccountByIDForUpdate(ctx, tx, txn.AccountID)
		if err != nil {
			return err
		}
		account.Balance = account.Balance.Add(txn.Amount)
		if err := s.repo.UpdateAccountTotals(ctx, tx, account); err != nil {
			return err
		}

		s.log.Info("withdrawal failed and balance restored",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("account_id", txn.AccountID.String()),
			zap.String("reason", reason),
		)
		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				Type: events.EventWithdrawalFailed,
				Payload: map[string]any{
					"transaction_id": txn.ID.String(),
					"reason":         reason,
				},
				DedupeKey: "withdrawal_failed:" + txn.ID.String(),
			})
		}
		return nil
	})
}

func (s *Service) withdrawalForUpdate(ctx context.Context, tx *gorm.DB, transactionID snowflake.ID) (*domain.VirtualTransaction, error) {
	txn, err := s.repo.FindTransactionByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Type != domain.TxnCommissionWithdrawal || txn.Direction != domain.DirectionDebit {
		return nil, domain.ErrInvalidTransition
	}
	if txn.Status != domain.TxnPending {
		return nil, domain.ErrInvalidTransition
	}
	return txn, nil
}

func (s *Service) RequestRefund(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, reason string, meta domain.TransactionMeta) (*domain.RefundRequest, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if _, err := s.repo.FindAccountByID(ctx, s.db, accountID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	req := &domain.RefundRequest{
		ID:            s.genID.Generate(),
		AccountID:     accountID,
		Amount:        amount,
		Reason:        strings.TrimSpace(reason),
		ReferenceType: meta.ReferenceType,
		ReferenceID:   meta.ReferenceID,
		Status:        domain.RefundPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertRefundRequest(ctx, s.db, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) ApproveRefund(ctx context.Context, refundID snowflake.ID, resolvedBy string) (*domain.VirtualTransaction, error) {
	var txn *domain.VirtualTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		req, err := s.repo.FindRefundRequestByIDForUpdate(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if req.Status != domain.RefundPending {
			return domain.ErrInvalidTransition
		}

		txn, err = s.CreditTx(ctx, tx, req.AccountID, req.Amount, domain.TxnRefund, domain.TransactionMeta{
			ReferenceType: "refund_request",
			ReferenceID:   req.ID.String(),
			CreatedBy:     resolvedBy,
			Description:   req.Reason,
		})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		req.Status = domain.RefundApproved
		req.ResolvedBy = &resolvedBy
		req.ResolvedAt = &now
		return s.repo.UpdateRefundRequest(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) RejectRefund(ctx context.Context, refundID snowflake.ID, resolvedBy string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		req, err := s.repo.FindRefundRequestByIDForUpdate(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if req.Status != domain.RefundPending {
			return domain.ErrInvalidTransition
		}
		now := s.clock.Now()
		req.Status = domain.RefundRejected
		req.ResolvedBy = &resolvedBy
		req.ResolvedAt = &now
		return s.repo.UpdateRefundRequest(ctx, tx, req)
	})
}

func (s *Service) buildTransaction(accountID snowflake.ID, amount decimal.Decimal, direction domain.Direction, balanceAfter decimal.Decimal, status domain.TransactionStatus, txnType domain.TransactionType, meta domain.TransactionMeta) *domain.VirtualTransaction {
	now := s.clock.Now()
	return &domain.VirtualTransaction{
		ID:               s.genID.Generate(),
		AccountID:        accountID,
		Type:             txnType,
		Amount:           amount,
		Direction:        direction,
		BalanceAfter:     balanceAfter,
		Status:           status,
		PricingPeg:       meta.PricingPeg,
		BillingCurrency:  meta.BillingCurrency,
		PriceBookID:      meta.PriceBookID,
		PriceBookVersion: meta.PriceBookVersion,
		OverrideID:       meta.OverrideID,
		ReferenceType:    meta.ReferenceType,
		ReferenceID:      meta.ReferenceID,
		CreatedBy:        meta.CreatedBy,
		Description:      meta.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *Service) lockCurrencyIfCompany(ctx context.Context, tx *gorm.DB, account *domain.VirtualAccount, meta domain.TransactionMeta) error {
	if account.OwnerType != domain.OwnerCompany || strings.TrimSpace(meta.BillingCurrency) == "" {
		return nil
	}
	return s.currency.LockTx(ctx, tx, account.OwnerID)
}

func (s *Service) publishLedgerEvent(ctx context.Context, tx *gorm.DB, eventType string, account *domain.VirtualAccount, txn *domain.VirtualTransaction) error {
	if s.outbox == nil {
		return nil
	}
	companyID := snowflake.ID(0)
	if account.OwnerType == domain.OwnerCompany {
		companyID = account.OwnerID
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		CompanyID: companyID,
		Type:      eventType,
		Payload: map[string]any{
			"transaction_id": txn.ID.String(),
			"account_id":     account.ID.String(),
			"type":           string(txn.Type),
			"direction":      string(txn.Direction),
			"amount":         txn.Amount.StringFixed(2),
			"balance_after":  txn.BalanceAfter.StringFixed(2),
			"reference_type": txn.ReferenceType,
			"reference_id":   txn.ReferenceID,
		},
		DedupeKey: "txn:" + txn.ID.String(),
	})
}
