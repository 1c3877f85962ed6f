package migration

import (
	auditdomain "github.com/hrm8/walletcore/internal/audit/domain"
	commissiondomain "github.com/hrm8/walletcore/internal/commission/domain"
	companydomain "github.com/hrm8/walletcore/internal/company/domain"
	"github.com/hrm8/walletcore/internal/config"
	"github.com/hrm8/walletcore/internal/events"
	paymentdomain "github.com/hrm8/walletcore/internal/payment/domain"
	pricebookdomain "github.com/hrm8/walletcore/internal/pricebook/domain"
	"github.com/hrm8/walletcore/internal/seed"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "sqlite" {
			// The embedded SQL targets postgres; sqlite (tests, local
			// single-binary runs) builds its schema from the models.
			if err := conn.AutoMigrate(
				&companydomain.Company{},
				&pricebookdomain.PriceBook{},
				&pricebookdomain.Product{},
				&pricebookdomain.PriceTier{},
				&pricebookdomain.EnterpriseOverride{},
				&walletdomain.VirtualAccount{},
				&walletdomain.VirtualTransaction{},
				&walletdomain.RefundRequest{},
				&commissiondomain.Consultant{},
				&commissiondomain.Commission{},
				&paymentdomain.Job{},
				&paymentdomain.Subscription{},
				&auditdomain.AuditLog{},
				&events.OutboxEvent{},
			); err != nil {
				return err
			}
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		return seed.EnsureGlobalAccount(conn)
	}),
)
