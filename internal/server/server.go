package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/hrm8/walletcore/internal/audit/domain"
	commissiondomain "github.com/hrm8/walletcore/internal/commission/domain"
	"github.com/hrm8/walletcore/internal/config"
	currencydomain "github.com/hrm8/walletcore/internal/currency/domain"
	"github.com/hrm8/walletcore/internal/observability"
	obslogger "github.com/hrm8/walletcore/internal/observability/logger"
	obstracing "github.com/hrm8/walletcore/internal/observability/tracing"
	paymentdomain "github.com/hrm8/walletcore/internal/payment/domain"
	pricebookdomain "github.com/hrm8/walletcore/internal/pricebook/domain"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	walletSvc     walletdomain.Service
	currencySvc   currencydomain.Service
	pricingSvc    pricebookdomain.Service
	commissionSvc commissiondomain.Service
	paymentSvc    paymentdomain.Service
	auditSvc      auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	WalletSvc     walletdomain.Service
	CurrencySvc   currencydomain.Service
	PricingSvc    pricebookdomain.Service
	CommissionSvc commissiondomain.Service
	PaymentSvc    paymentdomain.Service
	AuditSvc      auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		walletSvc:     p.WalletSvc,
		currencySvc:   p.CurrencySvc,
		pricingSvc:    p.PricingSvc,
		commissionSvc: p.CommissionSvc,
		paymentSvc:    p.PaymentSvc,
		auditSvc:      p.AuditSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/wallets/:owner_type/:owner_id", s.GetBalance)
	api.POST("/wallets/:owner_type/:owner_id", s.GetOrCreateAccount)
	api.POST("/accounts/:id/credit", s.CreditAccount)
	api.POST("/accounts/:id/debit", s.DebitAccount)
	api.GET("/accounts/:id/transactions", s.ListTransactions)
	api.POST("/accounts/:id/withdrawals", s.RequestWithdrawal)
	api.POST("/accounts/:id/refunds", s.RequestRefund)

	api.GET("/companies/:id/currency", s.ResolveCurrency)
	api.POST("/companies/:id/currency/assign", s.AssignCurrency)
	api.POST("/companies/:id/currency/lock", s.LockCurrency)
	api.POST("/companies/:id/currency/validate", s.ValidateCurrencyLock)

	api.GET("/companies/:id/price-book", s.GetEffectivePriceBook)
	api.GET("/companies/:id/price", s.GetPriceForProduct)

	api.POST("/commissions/award", s.AwardCommission)
	api.POST("/commissions", s.RequestCommissionHandler)
	api.GET("/commissions/:id", s.GetCommission)
	api.POST("/commissions/:id/confirm", s.ConfirmCommission)
	api.POST("/commissions/:id/pay", s.MarkCommissionPaid)
	api.POST("/commissions/:id/dispute", s.DisputeCommission)
	api.POST("/commissions/:id/resolve", s.ResolveCommissionDispute)
	api.POST("/commissions/:id/clawback", s.ClawbackCommission)

	api.POST("/jobs/:id/pay", s.PayForJob)
	api.POST("/subscriptions", s.PurchaseSubscription)
	api.POST("/subscriptions/:id/consume", s.ConsumeJobQuota)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/companies/:id/currency/override", s.EmergencyCurrencyOverride)
	admin.POST("/withdrawals/:id/complete", s.CompleteWithdrawal)
	admin.POST("/withdrawals/:id/fail", s.FailWithdrawal)
	admin.POST("/refunds/:id/approve", s.ApproveRefund)
	admin.POST("/refunds/:id/reject", s.RejectRefund)
	admin.GET("/audit-logs", s.ListAuditLogs)
}
