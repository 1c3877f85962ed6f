package server

import (
	"net/http"
	"testing"

	commissiondomain "github.com/hrm8/walletcore/internal/commission/domain"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	paymentdomain "github.com/hrm8/walletcore/internal/payment/domain"
	"github.com/hrm8/walletcore/internal/paylock"
	pricebookdomain "github.com/hrm8/walletcore/internal/pricebook/domain"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestMapErrorInsufficientBalance(t *testing.T) {
	err := &walletdomain.InsufficientBalanceError{
		Required:  decimal.NewFromInt(60),
		Available: decimal.NewFromInt(40),
		Currency:  "INR",
	}

	status, payload := mapError(err)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if len(payload.Errors) != 1 || payload.Errors[0].Code != "insufficient_balance" {
		t.Fatalf("expected itemized insufficient_balance error, got %+v", payload.Errors)
	}
	if payload.Errors[0].Message == "" {
		t.Fatalf("expected the itemized amounts in the message")
	}
}

func TestMapErrorValidation(t *testing.T) {
	cases := []error{
		walletdomain.ErrInvalidAmount,
		walletdomain.ErrInvalidTransition,
		currencydomain.ErrCurrencyLocked,
		currencydomain.ErrCurrencyMismatch,
		currencydomain.ErrMissingReason,
		commissiondomain.ErrInvalidStateTransition,
		commissiondomain.ErrInvalidRate,
		paymentdomain.ErrQuotaExhausted,
		paymentdomain.ErrInvalidPlan,
		pricebookdomain.ErrInvalidQuantity,
	}
	for _, err := range cases {
		status, payload := mapError(err)
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", err, status)
		}
		if payload.Type != "validation_error" {
			t.Fatalf("expected validation_error for %v, got %s", err, payload.Type)
		}
	}
}

func TestMapErrorNotFound(t *testing.T) {
	cases := []error{
		walletdomain.ErrAccountNotFound,
		walletdomain.ErrTransactionNotFound,
		commissiondomain.ErrCommissionNotFound,
		paymentdomain.ErrJobNotFound,
		pricebookdomain.ErrProductNotFound,
		gorm.ErrRecordNotFound,
	}
	for _, err := range cases {
		status, _ := mapError(err)
		if status != http.StatusNotFound {
			t.Fatalf("expected 404 for %v, got %d", err, status)
		}
	}
}

func TestMapErrorConflict(t *testing.T) {
	status, payload := mapError(paylock.ErrPaymentInProgress)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if payload.Type != "conflict" {
		t.Fatalf("expected conflict payload, got %s", payload.Type)
	}
}

func TestMapErrorPricingConfig(t *testing.T) {
	for _, err := range []error{pricebookdomain.ErrNoPriceBook, pricebookdomain.ErrNoTierFound} {
		status, payload := mapError(err)
		if status != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 for %v, got %d", err, status)
		}
		if payload.Message != "pricing unavailable" {
			t.Fatalf("expected pricing unavailable, got %s", payload.Message)
		}
	}
}

func TestMapErrorUnknownIsInternal(t *testing.T) {
	status, payload := mapError(gorm.ErrInvalidTransaction)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if payload.Type != "internal_error" {
		t.Fatalf("expected internal_error, got %s", payload.Type)
	}
}
