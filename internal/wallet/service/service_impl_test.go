package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/hrm8/walletcore/internal/clock"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/hrm8/walletcore/internal/wallet/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type currencyStub struct {
	validateErr error
	lockCalls   int
}

func (s *currencyStub) Assign(ctx context.Context, req currencydomain.AssignRequest) (*currencydomain.Assignment, error) {
	return nil, nil
}
func (s *currencyStub) Lock(ctx context.Context, companyID snowflake.ID) error { return nil }
func (s *currencyStub) LockTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID) error {
	s.lockCalls++
	return nil
}
func (s *currencyStub) ValidateLock(ctx context.Context, companyID snowflake.ID, expectedCurrency string) error {
	return s.validateErr
}
func (s *currencyStub) ValidateLockTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, expectedCurrency string) error {
	return s.validateErr
}
func (s *currencyStub) EmergencyOverride(ctx context.Context, req currencydomain.OverrideRequest) (*currencydomain.Assignment, error) {
	return nil, nil
}
func (s *currencyStub) Resolve(ctx context.Context, companyID snowflake.ID) (*currencydomain.Assignment, error) {
	return nil, nil
}

func setupWalletService(t *testing.T, currency currencydomain.Service) (walletdomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(
		&walletdomain.VirtualAccount{},
		&walletdomain.VirtualTransaction{},
		&walletdomain.RefundRequest{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    mustNode(t),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Currency: currency,
	})
	return svc, db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestGetOrCreateAccountIdempotent(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()
	ownerID := mustNode(t).Generate()

	first, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, ownerID)
	if err != nil {
		t.Fatalf("first get-or-create: %v", err)
	}
	second, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, ownerID)
	if err != nil {
		t.Fatalf("second get-or-create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same account, got %s vs %s", first.ID, second.ID)
	}
	if !first.Balance.IsZero() {
		t.Fatalf("expected zero opening balance, got %s", first.Balance)
	}
}

func TestCreditThenDebitBalances(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}

	credit, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(100), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !credit.BalanceAfter.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance_after 100, got %s", credit.BalanceAfter)
	}

	debit, err := svc.Debit(ctx, account.ID, decimal.NewFromInt(60), walletdomain.TxnJobPostingDeduction, walletdomain.TransactionMeta{})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !debit.BalanceAfter.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance_after 40, got %s", debit.BalanceAfter)
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance 40, got %s", summary.Balance)
	}
	if !summary.TotalCredits.Equal(decimal.NewFromInt(100)) || !summary.TotalDebits.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected totals 100/60, got %s/%s", summary.TotalCredits, summary.TotalDebits)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(100), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if _, err := svc.Debit(ctx, account.ID, decimal.NewFromInt(60), walletdomain.TxnJobPostingDeduction, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("first debit: %v", err)
	}

	_, err = svc.Debit(ctx, account.ID, decimal.NewFromInt(60), walletdomain.TxnJobPostingDeduction, walletdomain.TransactionMeta{})
	if !errors.Is(err, walletdomain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	var detail *walletdomain.InsufficientBalanceError
	if !errors.As(err, &detail) {
		t.Fatalf("expected itemized error, got %T", err)
	}
	if !detail.Shortfall().Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected shortfall 20, got %s", detail.Shortfall())
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance unchanged at 40, got %s", summary.Balance)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerConsultant, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}

	if _, err := svc.Debit(ctx, account.ID, decimal.Zero, walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); !errors.Is(err, walletdomain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for zero, got %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(-5), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); !errors.Is(err, walletdomain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for negative, got %v", err)
	}
}

func TestDebitCurrencyMismatch(t *testing.T) {
	stub := &currencyStub{validateErr: currencydomain.ErrCurrencyMismatch}
	svc, _ := setupWalletService(t, stub)
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(100), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err = svc.Debit(ctx, account.ID, decimal.NewFromInt(10), walletdomain.TxnJobPostingDeduction, walletdomain.TransactionMeta{BillingCurrency: "EUR"})
	if !errors.Is(err, currencydomain.ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance untouched at 100, got %s", summary.Balance)
	}
}

func TestWithdrawalCompleteKeepsBalance(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerConsultant, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(100), walletdomain.TxnCommissionEarned, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	txn, err := svc.RequestWithdrawal(ctx, account.ID, decimal.NewFromInt(30), walletdomain.TransactionMeta{})
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if txn.Status != walletdomain.TxnPending {
		t.Fatalf("expected PENDING withdrawal, got %s", txn.Status)
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected balance cut to 70 on request, got %s", summary.Balance)
	}

	if err := svc.CompleteWithdrawal(ctx, txn.ID); err != nil {
		t.Fatalf("complete withdrawal: %v", err)
	}

	summary, err = svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected balance to stay 70 after completion, got %s", summary.Balance)
	}

	if err := svc.CompleteWithdrawal(ctx, txn.ID); !errors.Is(err, walletdomain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double complete, got %v", err)
	}
}

func TestWithdrawalFailRestoresBalance(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerConsultant, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(100), walletdomain.TxnCommissionEarned, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	txn, err := svc.RequestWithdrawal(ctx, account.ID, decimal.NewFromInt(30), walletdomain.TransactionMeta{})
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	if err := svc.FailWithdrawal(ctx, txn.ID, "bank rejected"); err != nil {
		t.Fatalf("fail withdrawal: %v", err)
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance restored to 100, got %s", summary.Balance)
	}
	// Lifetime counters are append only; the failed attempt stays counted.
	if !summary.TotalDebits.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected total_debits to stay 30, got %s", summary.TotalDebits)
	}
}

func TestRefundApproveCredits(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(50), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	req, err := svc.RequestRefund(ctx, account.ID, decimal.NewFromInt(25), "duplicate charge", walletdomain.TransactionMeta{})
	if err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if req.Status != walletdomain.RefundPending {
		t.Fatalf("expected PENDING refund, got %s", req.Status)
	}

	txn, err := svc.ApproveRefund(ctx, req.ID, "ops@hrm8")
	if err != nil {
		t.Fatalf("approve refund: %v", err)
	}
	if txn.Type != walletdomain.TxnRefund || txn.Direction != walletdomain.DirectionCredit {
		t.Fatalf("expected REFUND credit, got %s %s", txn.Type, txn.Direction)
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected balance 75 after refund, got %s", summary.Balance)
	}

	if _, err := svc.ApproveRefund(ctx, req.ID, "ops@hrm8"); !errors.Is(err, walletdomain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double approve, got %v", err)
	}
}

func TestRejectRefundMovesNoMoney(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(50), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	req, err := svc.RequestRefund(ctx, account.ID, decimal.NewFromInt(25), "changed mind", walletdomain.TransactionMeta{})
	if err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if err := svc.RejectRefund(ctx, req.ID, "ops@hrm8"); err != nil {
		t.Fatalf("reject refund: %v", err)
	}

	summary, err := svc.Balance(ctx, account.OwnerType, account.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected balance unchanged at 50, got %s", summary.Balance)
	}
}

func TestListTransactionsFiltersByType(t *testing.T) {
	svc, _ := setupWalletService(t, &currencyStub{})
	ctx := context.Background()

	account, err := svc.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, mustNode(t).Generate())
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if _, err := svc.Credit(ctx, account.ID, decimal.NewFromInt(100), walletdomain.TxnManualAdjustment, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.Debit(ctx, account.ID, decimal.NewFromInt(10), walletdomain.TxnJobPostingDeduction, walletdomain.TransactionMeta{}); err != nil {
		t.Fatalf("debit: %v", err)
	}

	entries, err := svc.ListTransactions(ctx, walletdomain.ListTransactionsFilter{
		AccountID: account.ID,
		Type:      walletdomain.TxnJobPostingDeduction,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 deduction entry, got %d", len(entries))
	}
	if entries[0].Direction != walletdomain.DirectionDebit {
		t.Fatalf("expected DEBIT entry, got %s", entries[0].Direction)
	}
}
