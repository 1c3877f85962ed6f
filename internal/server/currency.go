package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
)

func (s *Server) ResolveCurrency(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	assignment, err := s.currencySvc.Resolve(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assignment})
}

func (s *Server) AssignCurrency(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		CountryCode string `json:"country_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assignment, err := s.currencySvc.Assign(c.Request.Context(), currencydomain.AssignRequest{
		CompanyID:   companyID,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assignment})
}

func (s *Server) LockCurrency(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.currencySvc.Lock(c.Request.Context(), companyID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"locked": true}})
}

func (s *Server) ValidateCurrencyLock(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Currency string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.currencySvc.ValidateLock(c.Request.Context(), companyID, req.Currency); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": true}})
}

func (s *Server) EmergencyCurrencyOverride(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		PricingPeg      string `json:"pricing_peg"`
		BillingCurrency string `json:"billing_currency"`
		Reason          string `json:"reason"`
		ActorID         string `json:"actor_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assignment, err := s.currencySvc.EmergencyOverride(c.Request.Context(), currencydomain.OverrideRequest{
		CompanyID:       companyID,
		PricingPeg:      req.PricingPeg,
		BillingCurrency: req.BillingCurrency,
		Reason:          req.Reason,
		ActorID:         req.ActorID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assignment})
}
