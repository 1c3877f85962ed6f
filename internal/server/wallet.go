package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/shopspring/decimal"
)

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

func parseOwnerType(value string) (walletdomain.OwnerType, bool) {
	switch walletdomain.OwnerType(strings.ToUpper(strings.TrimSpace(value))) {
	case walletdomain.OwnerCompany:
		return walletdomain.OwnerCompany, true
	case walletdomain.OwnerConsultant:
		return walletdomain.OwnerConsultant, true
	case walletdomain.OwnerPlatform:
		return walletdomain.OwnerPlatform, true
	default:
		return "", false
	}
}

type ledgerOpRequest struct {
	Amount           string  `json:"amount"`
	Type             string  `json:"type"`
	ReferenceType    string  `json:"reference_type"`
	ReferenceID      string  `json:"reference_id"`
	PricingPeg       string  `json:"pricing_peg"`
	BillingCurrency  string  `json:"billing_currency"`
	PriceBookID      *string `json:"price_book_id"`
	PriceBookVersion *int    `json:"price_book_version"`
	CreatedBy        string  `json:"created_by"`
	Description      string  `json:"description"`
}

func (r *ledgerOpRequest) meta() (walletdomain.TransactionMeta, error) {
	meta := walletdomain.TransactionMeta{
		ReferenceType:    r.ReferenceType,
		ReferenceID:      r.ReferenceID,
		PricingPeg:       r.PricingPeg,
		BillingCurrency:  r.BillingCurrency,
		PriceBookVersion: r.PriceBookVersion,
		CreatedBy:        r.CreatedBy,
		Description:      r.Description,
	}
	if r.PriceBookID != nil {
		id, err := snowflake.ParseString(*r.PriceBookID)
		if err != nil {
			return meta, newValidationError("price_book_id", "invalid_price_book_id", "invalid price book id")
		}
		meta.PriceBookID = &id
	}
	return meta, nil
}

func (r *ledgerOpRequest) amount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return decimal.Zero, walletdomain.ErrInvalidAmount
	}
	return amount, nil
}

func (s *Server) GetBalance(c *gin.Context) {
	ownerType, ok := parseOwnerType(c.Param("owner_type"))
	if !ok {
		AbortWithError(c, newValidationError("owner_type", "invalid_owner_type", "invalid owner type"))
		return
	}
	ownerID, err := parseID(c.Param("owner_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.walletSvc.Balance(c.Request.Context(), ownerType, ownerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetOrCreateAccount(c *gin.Context) {
	ownerType, ok := parseOwnerType(c.Param("owner_type"))
	if !ok {
		AbortWithError(c, newValidationError("owner_type", "invalid_owner_type", "invalid owner type"))
		return
	}
	ownerID, err := parseID(c.Param("owner_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.walletSvc.GetOrCreateAccount(c.Request.Context(), ownerType, ownerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) CreditAccount(c *gin.Context) {
	s.ledgerOp(c, walletdomain.DirectionCredit)
}

func (s *Server) DebitAccount(c *gin.Context) {
	s.ledgerOp(c, walletdomain.DirectionDebit)
}

func (s *Server) ledgerOp(c *gin.Context, direction walletdomain.Direction) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ledgerOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := req.amount()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	meta, err := req.meta()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	txnType := walletdomain.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if txnType == "" {
		txnType = walletdomain.TxnManualAdjustment
	}

	var txn *walletdomain.VirtualTransaction
	if direction == walletdomain.DirectionCredit {
		txn, err = s.walletSvc.Credit(c.Request.Context(), accountID, amount, txnType, meta)
	} else {
		txn, err = s.walletSvc.Debit(c.Request.Context(), accountID, amount, txnType, meta)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) ListTransactions(c *gin.Context) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	txns, err := s.walletSvc.ListTransactions(c.Request.Context(), walletdomain.ListTransactionsFilter{
		AccountID: accountID,
		Type:      walletdomain.TransactionType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
		Status:    walletdomain.TransactionStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txns})
}

func (s *Server) RequestWithdrawal(c *gin.Context) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ledgerOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := req.amount()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	meta, err := req.meta()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txn, err := s.walletSvc.RequestWithdrawal(c.Request.Context(), accountID, amount, meta)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) CompleteWithdrawal(c *gin.Context) {
	txnID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.walletSvc.CompleteWithdrawal(c.Request.Context(), txnID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "COMPLETED"}})
}

func (s *Server) FailWithdrawal(c *gin.Context) {
	txnID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := s.walletSvc.FailWithdrawal(c.Request.Context(), txnID, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "FAILED"}})
}

func (s *Server) RequestRefund(c *gin.Context) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		ledgerOpRequest
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := req.amount()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	meta, err := req.meta()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	refund, err := s.walletSvc.RequestRefund(c.Request.Context(), accountID, amount, req.Reason, meta)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) ApproveRefund(c *gin.Context) {
	refundID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		ResolvedBy string `json:"resolved_by"`
	}
	_ = c.ShouldBindJSON(&req)

	txn, err := s.walletSvc.ApproveRefund(c.Request.Context(), refundID, req.ResolvedBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) RejectRefund(c *gin.Context) {
	refundID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		ResolvedBy string `json:"resolved_by"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := s.walletSvc.RejectRefund(c.Request.Context(), refundID, req.ResolvedBy); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "REJECTED"}})
}
