package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/clock"
	"github.com/hrm8/walletcore/internal/commission/domain"
	"github.com/hrm8/walletcore/internal/config"
	"github.com/hrm8/walletcore/internal/events"
	"github.com/hrm8/walletcore/internal/observability/metrics"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Rates   *config.RatesConfigHolder
	Repo    domain.Repository
	Wallet  walletdomain.Service
	Outbox  *events.Outbox   `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	rates   *config.RatesConfigHolder
	repo    domain.Repository
	wallet  walletdomain.Service
	outbox  *events.Outbox
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("commission.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		rates:   p.Rates,
		repo:    p.Repo,
		wallet:  p.Wallet,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) Award(ctx context.Context, req domain.AwardRequest) (*domain.Commission, error) {
	commission, err := s.build(ctx, req.ConsultantID, req.JobID, req.SubscriptionID, req.Type, req.PaymentAmount, req.Currency, req.RateOverride, "")
	if err != nil {
		return nil, err
	}

	account, err := s.wallet.GetOrCreateAccount(ctx, walletdomain.OwnerConsultant, req.ConsultantID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		commission.Status = domain.StatusConfirmed
		commission.ConfirmedAt = &now
		if err := s.repo.Insert(ctx, tx, commission); err != nil {
			return err
		}

		if _, err := s.wallet.CreditTx(ctx, tx, account.ID, commission.Amount, walletdomain.TxnCommissionEarned, walletdomain.TransactionMeta{
			ReferenceType:   "commission",
			ReferenceID:     commission.ID.String(),
			BillingCurrency: commission.Currency,
			CreatedBy:       req.CreatedBy,
		}); err != nil {
			return err
		}

		return s.publish(ctx, tx, events.EventCommissionConfirmed, commission)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, "", domain.StatusConfirmed)
	s.log.Info("commission awarded",
		zap.String("commission_id", commission.ID.String()),
		zap.String("consultant_id", req.ConsultantID.String()),
		zap.String("amount", commission.Amount.StringFixed(2)),
		zap.String("rate", commission.Rate.String()),
	)
	return commission, nil
}

func (s *Service) Request(ctx context.Context, req domain.RequestCommission) (*domain.Commission, error) {
	commission, err := s.build(ctx, req.ConsultantID, req.JobID, req.SubscriptionID, req.Type, req.PaymentAmount, req.Currency, req.RateOverride, req.Notes)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, commission); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventCommissionCreated, commission)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, "", domain.StatusPending)
	return commission, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	var commission *domain.Commission
	var from domain.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		commission, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		from = commission.Status

		if commission.Status == domain.StatusConfirmed {
			return nil
		}
		if commission.Status != domain.StatusPending {
			return domain.ErrInvalidStateTransition
		}

		account, err := s.wallet.GetOrCreateAccount(ctx, walletdomain.OwnerConsultant, commission.ConsultantID)
		if err != nil {
			return err
		}
		if _, err := s.wallet.CreditTx(ctx, tx, account.ID, commission.Amount, walletdomain.TxnCommissionEarned, walletdomain.TransactionMeta{
			ReferenceType:   "commission",
			ReferenceID:     commission.ID.String(),
			BillingCurrency: commission.Currency,
		}); err != nil {
			return err
		}

		now := s.clock.Now()
		commission.Status = domain.StatusConfirmed
		commission.ConfirmedAt = &now
		commission.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, commission); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventCommissionConfirmed, commission)
	})
	if err != nil {
		return nil, err
	}
	if from == domain.StatusPending {
		s.recordTransition(ctx, from, domain.StatusConfirmed)
	}
	return commission, nil
}

func (s *Service) MarkAsPaid(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	var commission *domain.Commission
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		commission, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if commission.Status != domain.StatusConfirmed {
			return domain.ErrInvalidStateTransition
		}

		now := s.clock.Now()
		commission.Status = domain.StatusPaid
		commission.PaidAt = &now
		commission.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, commission); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventCommissionPaid, commission)
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, domain.StatusConfirmed, domain.StatusPaid)
	return commission, nil
}

func (s *Service) Dispute(ctx context.Context, id snowflake.ID, reason string) (*domain.Commission, error) {
	var commission *domain.Commission
	var from domain.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		commission, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		from = commission.Status
		if from != domain.StatusConfirmed && from != domain.StatusPaid {
			return domain.ErrInvalidStateTransition
		}

		commission.Status = domain.StatusDisputed
		commission.Notes = appendNote(commission.Notes, "disputed", reason)
		commission.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, commission); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventCommissionDisputed, commission)
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, from, domain.StatusDisputed)
	return commission, nil
}

func (s *Service) ResolveDispute(ctx context.Context, id snowflake.ID, resolution domain.DisputeResolution, reason string) (*domain.Commission, error) {
	switch resolution {
	case domain.ResolutionValid:
		var commission *domain.Commission
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			commission, err = s.repo.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if commission.Status != domain.StatusDisputed {
				return domain.ErrInvalidStateTransition
			}

			// Money never moved on dispute, so restoring is a pure
			// status change.
			commission.Status = domain.StatusConfirmed
			commission.Notes = appendNote(commission.Notes, "dispute_resolved_valid", reason)
			commission.UpdatedAt = s.clock.Now()
			return s.repo.Update(ctx, tx, commission)
		})
		if err != nil {
			return nil, err
		}
		s.recordTransition(ctx, domain.StatusDisputed, domain.StatusConfirmed)
		return commission, nil
	case domain.ResolutionInvalid:
		return s.Clawback(ctx, id, appendNote("", "dispute_resolved_invalid", reason))
	default:
		return nil, domain.ErrInvalidStateTransition
	}
}

func (s *Service) Clawback(ctx context.Context, id snowflake.ID, reason string) (*domain.Commission, error) {
	var commission *domain.Commission
	var from, to domain.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		commission, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		from = commission.Status

		switch from {
		case domain.StatusPending:
			// Nothing was credited; cancel without touching the ledger.
			to = domain.StatusCancelled
			commission.Status = domain.StatusCancelled
			commission.Notes = appendNote(commission.Notes, "cancelled", reason)
			commission.UpdatedAt = s.clock.Now()
			return s.repo.Update(ctx, tx, commission)
		case domain.StatusConfirmed, domain.StatusPaid, domain.StatusDisputed:
			to = domain.StatusClawback
		default:
			return domain.ErrInvalidStateTransition
		}

		account, err := s.wallet.GetOrCreateAccount(ctx, walletdomain.OwnerConsultant, commission.ConsultantID)
		if err != nil {
			return err
		}
		if _, err := s.wallet.DebitTx(ctx, tx, account.ID, commission.Amount, walletdomain.TxnCommissionClawback, walletdomain.TransactionMeta{
			ReferenceType:   "commission",
			ReferenceID:     commission.ID.String(),
			BillingCurrency: commission.Currency,
			Description:     reason,
		}); err != nil {
			return err
		}

		commission.Status = domain.StatusClawback
		commission.Notes = appendNote(commission.Notes, "clawback", reason)
		commission.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, commission); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventCommissionClawedBack, commission)
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, from, to)
	s.log.Info("commission clawed back",
		zap.String("commission_id", commission.ID.String()),
		zap.String("from_status", string(from)),
		zap.String("to_status", string(to)),
		zap.String("reason", reason),
	)
	return commission, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Commission, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

// build resolves the rate (explicit override, then the consultant's
// stored default, then the configured platform default) and freezes the
// amount.
func (s *Service) build(ctx context.Context, consultantID snowflake.ID, jobID, subscriptionID *snowflake.ID, commissionType domain.CommissionType, paymentAmount decimal.Decimal, currency string, rateOverride *decimal.Decimal, notes string) (*domain.Commission, error) {
	if !paymentAmount.IsPositive() {
		return nil, domain.ErrInvalidPaymentAmount
	}
	if jobID == nil && subscriptionID == nil {
		return nil, domain.ErrMissingSource
	}

	consultant, err := s.repo.FindConsultantByID(ctx, s.db, consultantID)
	if err != nil {
		return nil, err
	}

	rate := decimal.NewFromFloat(s.rates.Current().DefaultCommissionRate)
	if consultant.DefaultCommissionRate != nil {
		rate = *consultant.DefaultCommissionRate
	}
	if rateOverride != nil {
		rate = *rateOverride
	}
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, domain.ErrInvalidRate
	}

	if commissionType == "" {
		commissionType = domain.TypePlacement
		if subscriptionID != nil {
			commissionType = domain.TypeSubscription
		}
	}

	now := s.clock.Now()
	return &domain.Commission{
		ID:             s.genID.Generate(),
		ConsultantID:   consultant.ID,
		RegionID:       consultant.RegionID,
		JobID:          jobID,
		SubscriptionID: subscriptionID,
		Type:           commissionType,
		Amount:         paymentAmount.Mul(rate).Round(2),
		Rate:           rate,
		Currency:       strings.ToUpper(strings.TrimSpace(currency)),
		Status:         domain.StatusPending,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, eventType string, commission *domain.Commission) error {
	if s.outbox == nil {
		return nil
	}
	payload := map[string]any{
		"commission_id": commission.ID.String(),
		"consultant_id": commission.ConsultantID.String(),
		"status":        string(commission.Status),
		"amount":        commission.Amount.StringFixed(2),
		"currency":      commission.Currency,
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      eventType,
		Payload:   payload,
		DedupeKey: eventType + ":" + commission.ID.String(),
	})
}

func (s *Service) recordTransition(ctx context.Context, from, to domain.Status) {
	if s.metrics == nil {
		return
	}
	fromLabel := string(from)
	if fromLabel == "" {
		fromLabel = "NEW"
	}
	s.metrics.RecordCommissionTransition(ctx, fromLabel, string(to))
}

func appendNote(notes, label, reason string) string {
	reason = strings.TrimSpace(reason)
	entry := label
	if reason != "" {
		entry = label + ": " + reason
	}
	if notes == "" {
		return entry
	}
	return notes + "\n" + entry
}
