package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/clock"
	"github.com/hrm8/walletcore/internal/config"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	"github.com/hrm8/walletcore/internal/events"
	"github.com/hrm8/walletcore/internal/observability/metrics"
	"github.com/hrm8/walletcore/internal/paylock"
	"github.com/hrm8/walletcore/internal/payment/domain"
	pricebookdomain "github.com/hrm8/walletcore/internal/pricebook/domain"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductExecutiveSearch is the product code a posting is routed to
// when its salary ceiling crosses the configured executive threshold.
const ProductExecutiveSearch = "executive_search"

const payLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Rates    *config.RatesConfigHolder
	Repo     domain.Repository
	Wallet   walletdomain.Service
	Pricing  pricebookdomain.Service
	Currency currencydomain.Service
	Locker   *paylock.Locker  `optional:"true"`
	Outbox   *events.Outbox   `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	rates    *config.RatesConfigHolder
	repo     domain.Repository
	wallet   walletdomain.Service
	pricing  pricebookdomain.Service
	currency currencydomain.Service
	locker   *paylock.Locker
	outbox   *events.Outbox
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		rates:    p.Rates,
		repo:     p.Repo,
		wallet:   p.Wallet,
		pricing:  p.Pricing,
		currency: p.Currency,
		locker:   p.Locker,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
	}
}

func (s *Service) PayForJobFromWallet(ctx context.Context, req domain.PayJobRequest) (*domain.PayJobResult, error) {
	job, err := s.repo.FindJobByID(ctx, s.db, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.CompanyID != req.CompanyID {
		return nil, domain.ErrJobCompanyMismatch
	}

	if strings.EqualFold(job.ServicePackage, domain.SelfManagedPackage) {
		return &domain.PayJobResult{Job: job, Skipped: true}, nil
	}
	if job.PaymentStatus == domain.PaymentPaid {
		return &domain.PayJobResult{Job: job, AlreadyPaid: true}, nil
	}

	release, err := s.locker.Acquire(ctx, "paylock:job:"+req.JobID.String(), payLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	productCode, salaryRange := s.routeProduct(job)
	quote, err := s.pricing.PriceForProduct(ctx, req.CompanyID, productCode, 1, salaryRange)
	if err != nil {
		s.recordPayment(ctx, "job", "pricing_failed")
		return nil, err
	}

	if err := s.currency.ValidateLock(ctx, req.CompanyID, quote.BillingCurrency); err != nil {
		s.recordPayment(ctx, "job", "currency_mismatch")
		return nil, err
	}

	account, err := s.wallet.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, req.CompanyID)
	if err != nil {
		return nil, err
	}

	result := &domain.PayJobResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Re-read under lock; a concurrent payer may have won the race
		// between the check above and this transaction.
		locked, err := s.repo.FindJobByIDForUpdate(ctx, tx, req.JobID)
		if err != nil {
			return err
		}
		if locked.PaymentStatus == domain.PaymentPaid {
			result.Job = locked
			result.AlreadyPaid = true
			return nil
		}

		txn, err := s.wallet.DebitTx(ctx, tx, account.ID, quote.Price, walletdomain.TxnJobPostingDeduction, walletdomain.TransactionMeta{
			ReferenceType:    "job",
			ReferenceID:      locked.ID.String(),
			PricingPeg:       quote.PricingPeg,
			BillingCurrency:  quote.BillingCurrency,
			PriceBookID:      &quote.PriceBookID,
			PriceBookVersion: &quote.PriceBookVersion,
			OverrideID:       quote.OverrideID,
			CreatedBy:        req.UserID,
		})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		price := quote.Price
		locked.PaymentStatus = domain.PaymentPaid
		locked.PaymentAmount = &price
		locked.PaymentCurrency = quote.BillingCurrency
		locked.PriceBookID = &quote.PriceBookID
		locked.PriceBookVersion = &quote.PriceBookVersion
		locked.PaidAt = &now
		if err := s.repo.UpdateJobPayment(ctx, tx, locked); err != nil {
			return err
		}

		result.Job = locked
		result.Transaction = txn

		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				CompanyID: req.CompanyID,
				Type:      events.EventPaymentCompleted,
				Payload: map[string]any{
					"job_id":         locked.ID.String(),
					"transaction_id": txn.ID.String(),
					"amount":         quote.Price.StringFixed(2),
					"currency":       quote.BillingCurrency,
					"product_code":   productCode,
				},
				DedupeKey: "job_payment:" + locked.ID.String(),
			})
		}
		return nil
	})
	if err != nil {
		s.recordPayment(ctx, "job", "failed")
		return nil, err
	}

	if result.AlreadyPaid {
		return result, nil
	}
	s.recordPayment(ctx, "job", "success")
	s.log.Info("job paid from wallet",
		zap.String("job_id", req.JobID.String()),
		zap.String("company_id", req.CompanyID.String()),
		zap.String("amount", quote.Price.StringFixed(2)),
		zap.String("currency", quote.BillingCurrency),
		zap.String("product_code", productCode),
	)
	return result, nil
}

func (s *Service) PurchaseSubscription(ctx context.Context, req domain.PurchaseSubscriptionRequest) (*domain.PurchaseSubscriptionResult, error) {
	planCode := strings.TrimSpace(req.PlanCode)
	if planCode == "" {
		return nil, domain.ErrInvalidPlan
	}

	release, err := s.locker.Acquire(ctx, "paylock:subscription:"+req.CompanyID.String()+":"+planCode, payLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	quote, err := s.pricing.PriceForProduct(ctx, req.CompanyID, planCode, 1, nil)
	if err != nil {
		s.recordPayment(ctx, "subscription", "pricing_failed")
		return nil, err
	}
	if err := s.currency.ValidateLock(ctx, req.CompanyID, quote.BillingCurrency); err != nil {
		s.recordPayment(ctx, "subscription", "currency_mismatch")
		return nil, err
	}

	account, err := s.wallet.GetOrCreateAccount(ctx, walletdomain.OwnerCompany, req.CompanyID)
	if err != nil {
		return nil, err
	}

	result := &domain.PurchaseSubscriptionResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		sub := s.buildSubscription(req, planCode, quote)

		txn, err := s.wallet.DebitTx(ctx, tx, account.ID, quote.Price, walletdomain.TxnSubscriptionPurchase, walletdomain.TransactionMeta{
			ReferenceType:    "subscription",
			ReferenceID:      sub.ID.String(),
			PricingPeg:       quote.PricingPeg,
			BillingCurrency:  quote.BillingCurrency,
			PriceBookID:      &quote.PriceBookID,
			PriceBookVersion: &quote.PriceBookVersion,
			OverrideID:       quote.OverrideID,
			CreatedBy:        req.UserID,
		})
		if err != nil {
			return err
		}
		if err := s.repo.InsertSubscription(ctx, tx, sub); err != nil {
			return err
		}

		result.Subscription = sub
		result.Transaction = txn

		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				CompanyID: req.CompanyID,
				Type:      events.EventSubscriptionPurchased,
				Payload: map[string]any{
					"subscription_id": sub.ID.String(),
					"plan_code":       planCode,
					"transaction_id":  txn.ID.String(),
					"amount":          quote.Price.StringFixed(2),
					"currency":        quote.BillingCurrency,
				},
				DedupeKey: "subscription_purchase:" + sub.ID.String(),
			})
		}
		return nil
	})
	if err != nil {
		s.recordPayment(ctx, "subscription", "failed")
		return nil, err
	}

	s.recordPayment(ctx, "subscription", "success")
	return result, nil
}

func (s *Service) ConsumeJobQuota(ctx context.Context, subscriptionID snowflake.ID) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.repo.FindSubscriptionByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != domain.SubscriptionActive {
			return domain.ErrSubscriptionInactive
		}
		if sub.JobQuota != nil && sub.JobsUsed >= *sub.JobQuota {
			return domain.ErrQuotaExhausted
		}

		sub.JobsUsed++
		return s.repo.UpdateSubscriptionUsage(ctx, tx, sub.ID, sub.JobsUsed)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// routeProduct decides which product prices the posting. Crossing the
// executive salary threshold reroutes to the executive-search product
// and switches tier matching to salary bands.
func (s *Service) routeProduct(job *domain.Job) (string, *decimal.Decimal) {
	threshold := decimal.NewFromFloat(s.rates.Current().ExecutiveSalaryThreshold)
	if job.SalaryMax != nil && job.SalaryMax.GreaterThanOrEqual(threshold) {
		return ProductExecutiveSearch, job.SalaryMax
	}
	return job.ServicePackage, nil
}

func (s *Service) buildSubscription(req domain.PurchaseSubscriptionRequest, planCode string, quote *pricebookdomain.PriceQuote) *domain.Subscription {
	now := s.clock.Now()
	endDate := now.AddDate(1, 0, 0)
	if req.BillingCycle == domain.CycleMonthly {
		endDate = now.AddDate(0, 1, 0)
	}
	return &domain.Subscription{
		ID:             s.genID.Generate(),
		CompanyID:      req.CompanyID,
		PlanCode:       planCode,
		BasePrice:      quote.Price,
		Currency:       quote.BillingCurrency,
		BillingCycle:   req.BillingCycle,
		JobQuota:       req.JobQuota,
		JobsUsed:       0,
		PrepaidBalance: quote.Price,
		Status:         domain.SubscriptionActive,
		StartDate:      now,
		EndDate:        endDate,
		RenewalDate:    endDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) recordPayment(ctx context.Context, kind, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordPaymentEvent(ctx, kind, outcome)
	}
}
