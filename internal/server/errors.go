package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/hrm8/walletcore/internal/audit/domain"
	commissiondomain "github.com/hrm8/walletcore/internal/commission/domain"
	companydomain "github.com/hrm8/walletcore/internal/company/domain"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	"github.com/hrm8/walletcore/internal/paylock"
	paymentdomain "github.com/hrm8/walletcore/internal/payment/domain"
	pricebookdomain "github.com/hrm8/walletcore/internal/pricebook/domain"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// Insufficient balance surfaces the itemized amounts so the UI can
	// tell the user what topping up would take.
	var balErr *walletdomain.InsufficientBalanceError
	if errors.As(err, &balErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: balErr.Error(),
			Errors: []ValidationError{
				{
					Field:   "amount",
					Code:    "insufficient_balance",
					Message: balErr.Error(),
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, paylock.ErrPaymentInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isPricingConfigError(err):
		// Configuration gap, not user error. Operators get alerted off
		// the logs; users get a generic pricing failure.
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "pricing unavailable",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isWalletValidationError(err),
		isCurrencyValidationError(err),
		isCommissionValidationError(err),
		isPaymentValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, pricebookdomain.ErrInvalidQuantity):
		return true
	default:
		return false
	}
}

func isWalletValidationError(err error) bool {
	switch {
	case errors.Is(err, walletdomain.ErrInvalidAmount),
		errors.Is(err, walletdomain.ErrInsufficientBalance),
		errors.Is(err, walletdomain.ErrAccountInactive),
		errors.Is(err, walletdomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func isCurrencyValidationError(err error) bool {
	switch {
	case errors.Is(err, currencydomain.ErrCurrencyLocked),
		errors.Is(err, currencydomain.ErrCurrencyMismatch),
		errors.Is(err, currencydomain.ErrInvalidCountry),
		errors.Is(err, currencydomain.ErrInvalidCurrency),
		errors.Is(err, currencydomain.ErrMissingReason):
		return true
	default:
		return false
	}
}

func isCommissionValidationError(err error) bool {
	switch {
	case errors.Is(err, commissiondomain.ErrInvalidStateTransition),
		errors.Is(err, commissiondomain.ErrInvalidPaymentAmount),
		errors.Is(err, commissiondomain.ErrInvalidRate),
		errors.Is(err, commissiondomain.ErrMissingSource):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrJobCompanyMismatch),
		errors.Is(err, paymentdomain.ErrSubscriptionInactive),
		errors.Is(err, paymentdomain.ErrQuotaExhausted),
		errors.Is(err, paymentdomain.ErrInvalidPlan):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidCompany),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, walletdomain.ErrAccountNotFound),
		errors.Is(err, walletdomain.ErrTransactionNotFound),
		errors.Is(err, walletdomain.ErrRefundNotFound),
		errors.Is(err, commissiondomain.ErrCommissionNotFound),
		errors.Is(err, commissiondomain.ErrConsultantNotFound),
		errors.Is(err, companydomain.ErrCompanyNotFound),
		errors.Is(err, paymentdomain.ErrJobNotFound),
		errors.Is(err, paymentdomain.ErrSubscriptionNotFound),
		errors.Is(err, pricebookdomain.ErrProductNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isPricingConfigError(err error) bool {
	switch {
	case errors.Is(err, pricebookdomain.ErrNoPriceBook),
		errors.Is(err, pricebookdomain.ErrNoTierFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "insufficient_balance":
		return "insufficient balance"
	case "currency_mismatch":
		return "payment currency does not match the locked billing currency"
	case "invalid_state_transition":
		return "action not allowed from the current status"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger's error fields.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case asValidationErrors(err) != nil, isValidationError(err):
		return "validation", validationErrorCode(err)
	case isNotFoundError(err):
		return "not_found", err.Error()
	case isPricingConfigError(err):
		return "config", err.Error()
	case errors.Is(err, paylock.ErrPaymentInProgress):
		return "conflict", err.Error()
	default:
		return "internal", "internal_error"
	}
}
