package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/hrm8/walletcore/internal/payment/domain"
)

func (s *Server) PayForJob(c *gin.Context) {
	jobID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		CompanyID string `json:"company_id"`
		UserID    string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	companyID, err := parseID(req.CompanyID)
	if err != nil {
		AbortWithError(c, newValidationError("company_id", "invalid_company_id", "invalid company id"))
		return
	}

	result, err := s.paymentSvc.PayForJobFromWallet(c.Request.Context(), paymentdomain.PayJobRequest{
		CompanyID: companyID,
		JobID:     jobID,
		UserID:    req.UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) PurchaseSubscription(c *gin.Context) {
	var req struct {
		CompanyID    string `json:"company_id"`
		PlanCode     string `json:"plan_code"`
		BillingCycle string `json:"billing_cycle"`
		JobQuota     *int   `json:"job_quota"`
		UserID       string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	companyID, err := parseID(req.CompanyID)
	if err != nil {
		AbortWithError(c, newValidationError("company_id", "invalid_company_id", "invalid company id"))
		return
	}

	cycle := paymentdomain.BillingCycle(strings.ToUpper(strings.TrimSpace(req.BillingCycle)))
	if cycle == "" {
		cycle = paymentdomain.CycleAnnual
	}

	result, err := s.paymentSvc.PurchaseSubscription(c.Request.Context(), paymentdomain.PurchaseSubscriptionRequest{
		CompanyID:    companyID,
		PlanCode:     req.PlanCode,
		BillingCycle: cycle,
		JobQuota:     req.JobQuota,
		UserID:       req.UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ConsumeJobQuota(c *gin.Context) {
	subscriptionID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.paymentSvc.ConsumeJobQuota(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sub})
}
