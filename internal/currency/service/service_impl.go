package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/hrm8/walletcore/internal/audit/domain"
	"github.com/hrm8/walletcore/internal/clock"
	companydomain "github.com/hrm8/walletcore/internal/company/domain"
	"github.com/hrm8/walletcore/internal/config"
	"github.com/hrm8/walletcore/internal/currency/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Rates     *config.RatesConfigHolder
	Companies companydomain.Repository
	Audit     auditdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	rates     *config.RatesConfigHolder
	companies companydomain.Repository
	audit     auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("currency.service"),
		clock:     p.Clock,
		rates:     p.Rates,
		companies: p.Companies,
		audit:     p.Audit,
	}
}

func (s *Service) Assign(ctx context.Context, req domain.AssignRequest) (*domain.Assignment, error) {
	countryCode := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if countryCode == "" {
		return nil, domain.ErrInvalidCountry
	}

	mapping := s.rates.CurrencyForCountry(countryCode)

	var assignment *domain.Assignment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		company, err := s.companies.FindByIDForUpdate(ctx, tx, req.CompanyID)
		if err != nil {
			return err
		}
		if company.CurrencyLocked() {
			return domain.ErrCurrencyLocked
		}

		if err := s.companies.UpdateCurrency(ctx, tx, company.ID, mapping.PricingPeg, mapping.BillingCurrency, nil); err != nil {
			return err
		}

		assignment = &domain.Assignment{
			CompanyID:       company.ID,
			PricingPeg:      mapping.PricingPeg,
			BillingCurrency: mapping.BillingCurrency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("currency assigned",
		zap.String("company_id", req.CompanyID.String()),
		zap.String("country_code", countryCode),
		zap.String("billing_currency", assignment.BillingCurrency),
	)
	return assignment, nil
}

func (s *Service) Lock(ctx context.Context, companyID snowflake.ID) error {
	return s.LockTx(ctx, s.db, companyID)
}

func (s *Service) LockTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID) error {
	company, err := s.companies.FindByID(ctx, tx, companyID)
	if err != nil {
		return err
	}
	if company.CurrencyLocked() {
		return nil
	}
	return s.companies.SetCurrencyLock(ctx, tx, companyID, s.clock.Now())
}

func (s *Service) ValidateLock(ctx context.Context, companyID snowflake.ID, expectedCurrency string) error {
	return s.ValidateLockTx(ctx, s.db, companyID, expectedCurrency)
}

func (s *Service) ValidateLockTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, expectedCurrency string) error {
	expected := strings.ToUpper(strings.TrimSpace(expectedCurrency))
	if expected == "" {
		return domain.ErrInvalidCurrency
	}

	company, err := s.companies.FindByID(ctx, tx, companyID)
	if err != nil {
		return err
	}
	if !company.CurrencyLocked() {
		return nil
	}
	if !strings.EqualFold(company.BillingCurrency, expected) {
		return domain.ErrCurrencyMismatch
	}
	return nil
}

func (s *Service) EmergencyOverride(ctx context.Context, req domain.OverrideRequest) (*domain.Assignment, error) {
	pricingPeg := strings.ToUpper(strings.TrimSpace(req.PricingPeg))
	billingCurrency := strings.ToUpper(strings.TrimSpace(req.BillingCurrency))
	if pricingPeg == "" || billingCurrency == "" {
		return nil, domain.ErrInvalidCurrency
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, domain.ErrMissingReason
	}

	var assignment *domain.Assignment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		company, err := s.companies.FindByIDForUpdate(ctx, tx, req.CompanyID)
		if err != nil {
			return err
		}

		previousPeg := company.PricingPeg
		previousBilling := company.BillingCurrency

		if err := s.companies.UpdateCurrency(ctx, tx, company.ID, pricingPeg, billingCurrency, nil); err != nil {
			return err
		}

		if s.audit != nil {
			companyIDStr := company.ID.String()
			actorID := strings.TrimSpace(req.ActorID)
			var actorPtr *string
			if actorID != "" {
				actorPtr = &actorID
			}
			metadata := map[string]any{
				"reason":                    req.Reason,
				"previous_pricing_peg":      previousPeg,
				"previous_billing_currency": previousBilling,
				"new_pricing_peg":           pricingPeg,
				"new_billing_currency":      billingCurrency,
				"lock_cleared":              company.CurrencyLocked(),
			}
			if err := s.audit.AuditLog(ctx, tx, &company.ID, string(auditdomain.ActorTypeAdmin), actorPtr, "currency.emergency_override", "company", &companyIDStr, metadata); err != nil {
				return err
			}
		}

		assignment = &domain.Assignment{
			CompanyID:       company.ID,
			PricingPeg:      pricingPeg,
			BillingCurrency: billingCurrency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("currency emergency override applied",
		zap.String("company_id", req.CompanyID.String()),
		zap.String("billing_currency", billingCurrency),
		zap.String("reason", req.Reason),
	)
	return assignment, nil
}

func (s *Service) Resolve(ctx context.Context, companyID snowflake.ID) (*domain.Assignment, error) {
	company, err := s.companies.FindByID(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}

	pricingPeg := company.PricingPeg
	billingCurrency := company.BillingCurrency
	if pricingPeg == "" || billingCurrency == "" {
		cfg := s.rates.Current()
		if pricingPeg == "" {
			pricingPeg = cfg.DefaultPricingPeg
		}
		if billingCurrency == "" {
			billingCurrency = cfg.DefaultBillingCurrency
		}
	}

	return &domain.Assignment{
		CompanyID:       company.ID,
		PricingPeg:      pricingPeg,
		BillingCurrency: billingCurrency,
		Locked:          company.CurrencyLocked(),
	}, nil
}
