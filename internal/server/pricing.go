package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (s *Server) GetEffectivePriceBook(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	book, err := s.pricingSvc.EffectiveBook(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": book})
}

func (s *Server) GetPriceForProduct(c *gin.Context) {
	companyID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	productCode := strings.TrimSpace(c.Query("product_code"))
	if productCode == "" {
		AbortWithError(c, newValidationError("product_code", "invalid_product_code", "product_code is required"))
		return
	}

	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "quantity must be an integer"))
		return
	}

	var salaryRange *decimal.Decimal
	if raw := strings.TrimSpace(c.Query("salary_range")); raw != "" {
		salary, err := decimal.NewFromString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("salary_range", "invalid_salary_range", "salary_range must be numeric"))
			return
		}
		salaryRange = &salary
	}

	quote, err := s.pricingSvc.PriceForProduct(c.Request.Context(), companyID, productCode, quantity, salaryRange)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quote})
}
