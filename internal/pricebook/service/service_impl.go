package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/clock"
	companydomain "github.com/hrm8/walletcore/internal/company/domain"
	"github.com/hrm8/walletcore/internal/config"
	"github.com/hrm8/walletcore/internal/observability/metrics"
	"github.com/hrm8/walletcore/internal/pricebook/domain"
	"github.com/shopspring/decimal"
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
	Repo      domain.Repository
	Companies companydomain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	rates     *config.RatesConfigHolder
	repo      domain.Repository
	companies companydomain.Repository
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("pricebook.service"),
		clock:     p.Clock,
		rates:     p.Rates,
		repo:      p.Repo,
		companies: p.Companies,
		metrics:   p.Metrics,
	}
}

func (s *Service) EffectiveBook(ctx context.Context, companyID snowflake.ID) (*domain.PriceBook, error) {
	book, _, err := s.resolveBook(ctx, companyID)
	return book, err
}

// resolveBook also reports which active override (if any) won, so price
// quotes can record the override that shaped them.
func (s *Service) resolveBook(ctx context.Context, companyID snowflake.ID) (*domain.PriceBook, *domain.EnterpriseOverride, error) {
	now := s.clock.Now()

	company, err := s.companies.FindByID(ctx, s.db, companyID)
	if err != nil {
		return nil, nil, err
	}

	override, err := s.repo.FindActiveOverride(ctx, s.db, companyID, now)
	if err != nil {
		return nil, nil, err
	}
	if override != nil && override.PriceBookID != nil {
		book, err := s.repo.FindBookByID(ctx, s.db, *override.PriceBookID)
		if err != nil {
			return nil, nil, err
		}
		if book.Active && book.EffectiveAt(now) {
			return book, override, nil
		}
		s.log.Warn("enterprise override points at an unusable price book",
			zap.String("company_id", companyID.String()),
			zap.String("price_book_id", override.PriceBookID.String()),
		)
	}

	if company.AssignedPriceBookID != nil {
		book, err := s.repo.FindBookByID(ctx, s.db, *company.AssignedPriceBookID)
		if err == nil && book.Active && book.EffectiveAt(now) {
			return book, override, nil
		}
		if err != nil && err != domain.ErrNoPriceBook {
			return nil, nil, err
		}
	}

	pricingPeg := company.PricingPeg
	billingCurrency := company.BillingCurrency
	if override != nil {
		if override.PricingPeg != nil {
			pricingPeg = *override.PricingPeg
		}
		if override.BillingCurrency != nil {
			billingCurrency = *override.BillingCurrency
		}
	}
	if pricingPeg == "" || billingCurrency == "" {
		cfg := s.rates.Current()
		if pricingPeg == "" {
			pricingPeg = cfg.DefaultPricingPeg
		}
		if billingCurrency == "" {
			billingCurrency = cfg.DefaultBillingCurrency
		}
	}

	regional, err := s.repo.FindBestRegionalBook(ctx, s.db, pricingPeg, billingCurrency, now)
	if err != nil {
		return nil, nil, err
	}
	if regional != nil {
		return regional, override, nil
	}

	global, err := s.repo.FindGlobalBook(ctx, s.db, now)
	if err != nil {
		return nil, nil, err
	}
	if global != nil {
		return global, override, nil
	}

	s.log.Error("no price book resolvable for company",
		zap.String("company_id", companyID.String()),
		zap.String("pricing_peg", pricingPeg),
		zap.String("billing_currency", billingCurrency),
	)
	return nil, nil, domain.ErrNoPriceBook
}

func (s *Service) PriceForProduct(ctx context.Context, companyID snowflake.ID, productCode string, quantity int, salaryRange *decimal.Decimal) (*domain.PriceQuote, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	book, override, err := s.resolveBook(ctx, companyID)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.FindProductByCode(ctx, s.db, productCode)
	if err != nil {
		return nil, err
	}

	tiers, err := s.repo.ListTiers(ctx, s.db, book.ID, product.ID)
	if err != nil {
		return nil, err
	}

	bySalary := product.ExecutiveSearch && salaryRange != nil
	tier := matchTier(tiers, quantity, salaryRange, bySalary)
	if tier == nil {
		s.log.Error("no price tier matches",
			zap.String("company_id", companyID.String()),
			zap.String("product_code", productCode),
			zap.String("price_book_id", book.ID.String()),
			zap.Int("quantity", quantity),
			zap.Bool("salary_band", bySalary),
		)
		return nil, domain.ErrNoTierFound
	}

	source := "regional"
	switch {
	case override != nil && override.PriceBookID != nil && *override.PriceBookID == book.ID:
		source = "override"
	case book.CompanyID != nil:
		source = "assigned"
	case book.IsGlobal:
		source = "global"
	}
	if s.metrics != nil {
		s.metrics.RecordPriceLookup(ctx, product.Code, source)
	}

	quote := &domain.PriceQuote{
		Price:            tier.Price,
		PricingPeg:       book.PricingPeg,
		BillingCurrency:  book.BillingCurrency,
		PriceBookID:      book.ID,
		PriceBookVersion: book.Version,
		TierID:           tier.ID,
		ProductID:        product.ID,
	}
	if override != nil {
		quote.OverrideID = &override.ID
	}
	return quote, nil
}

// matchTier picks the tier with the highest matching lower bound. Ties
// on the lower bound are broken by insertion order.
func matchTier(tiers []domain.PriceTier, quantity int, salary *decimal.Decimal, bySalary bool) *domain.PriceTier {
	var best *domain.PriceTier
	for i := range tiers {
		tier := &tiers[i]
		if bySalary {
			if !tier.MatchesSalary(*salary) {
				continue
			}
			if best == nil || tier.SalaryBandMin.GreaterThan(*best.SalaryBandMin) {
				best = tier
			}
			continue
		}
		if !tier.MatchesQuantity(quantity) {
			continue
		}
		if best == nil || *tier.MinQuantity > *best.MinQuantity {
			best = tier
		}
	}
	return best
}
