package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	commissiondomain "github.com/hrm8/walletcore/internal/commission/domain"
	"github.com/shopspring/decimal"
)

type commissionRequest struct {
	ConsultantID   string  `json:"consultant_id"`
	JobID          *string `json:"job_id"`
	SubscriptionID *string `json:"subscription_id"`
	Type           string  `json:"type"`
	PaymentAmount  string  `json:"payment_amount"`
	Currency       string  `json:"currency"`
	RateOverride   *string `json:"rate_override"`
	CreatedBy      string  `json:"created_by"`
	Notes          string  `json:"notes"`
}

func (r *commissionRequest) parse() (snowflake.ID, *snowflake.ID, *snowflake.ID, decimal.Decimal, *decimal.Decimal, error) {
	consultantID, err := parseID(r.ConsultantID)
	if err != nil {
		return 0, nil, nil, decimal.Zero, nil, newValidationError("consultant_id", "invalid_consultant_id", "invalid consultant id")
	}

	var jobID, subscriptionID *snowflake.ID
	if r.JobID != nil {
		id, err := parseID(*r.JobID)
		if err != nil {
			return 0, nil, nil, decimal.Zero, nil, newValidationError("job_id", "invalid_job_id", "invalid job id")
		}
		jobID = &id
	}
	if r.SubscriptionID != nil {
		id, err := parseID(*r.SubscriptionID)
		if err != nil {
			return 0, nil, nil, decimal.Zero, nil, newValidationError("subscription_id", "invalid_subscription_id", "invalid subscription id")
		}
		subscriptionID = &id
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.PaymentAmount))
	if err != nil {
		return 0, nil, nil, decimal.Zero, nil, commissiondomain.ErrInvalidPaymentAmount
	}

	var rate *decimal.Decimal
	if r.RateOverride != nil {
		parsed, err := decimal.NewFromString(strings.TrimSpace(*r.RateOverride))
		if err != nil {
			return 0, nil, nil, decimal.Zero, nil, commissiondomain.ErrInvalidRate
		}
		rate = &parsed
	}

	return consultantID, jobID, subscriptionID, amount, rate, nil
}

func (s *Server) AwardCommission(c *gin.Context) {
	var req commissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	consultantID, jobID, subscriptionID, amount, rate, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	commission, err := s.commissionSvc.Award(c.Request.Context(), commissiondomain.AwardRequest{
		ConsultantID:   consultantID,
		JobID:          jobID,
		SubscriptionID: subscriptionID,
		Type:           commissiondomain.CommissionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		PaymentAmount:  amount,
		Currency:       req.Currency,
		RateOverride:   rate,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) RequestCommissionHandler(c *gin.Context) {
	var req commissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	consultantID, jobID, subscriptionID, amount, rate, err := req.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	commission, err := s.commissionSvc.Request(c.Request.Context(), commissiondomain.RequestCommission{
		ConsultantID:   consultantID,
		JobID:          jobID,
		SubscriptionID: subscriptionID,
		Type:           commissiondomain.CommissionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		PaymentAmount:  amount,
		Currency:       req.Currency,
		RateOverride:   rate,
		Notes:          req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) GetCommission(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	commission, err := s.commissionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) ConfirmCommission(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	commission, err := s.commissionSvc.Confirm(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) MarkCommissionPaid(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	commission, err := s.commissionSvc.MarkAsPaid(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) DisputeCommission(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	commission, err := s.commissionSvc.Dispute(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) ResolveCommissionDispute(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Resolution string `json:"resolution"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resolution := commissiondomain.DisputeResolution(strings.ToUpper(strings.TrimSpace(req.Resolution)))
	commission, err := s.commissionSvc.ResolveDispute(c.Request.Context(), id, resolution, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}

func (s *Server) ClawbackCommission(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	commission, err := s.commissionSvc.Clawback(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commission})
}
