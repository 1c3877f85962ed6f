package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/hrm8/walletcore/internal/audit"
	"github.com/hrm8/walletcore/internal/clock"
	"github.com/hrm8/walletcore/internal/commission"
	"github.com/hrm8/walletcore/internal/company"
	"github.com/hrm8/walletcore/internal/config"
	"github.com/hrm8/walletcore/internal/currency"
	"github.com/hrm8/walletcore/internal/events"
	"github.com/hrm8/walletcore/internal/migration"
	"github.com/hrm8/walletcore/internal/observability"
	"github.com/hrm8/walletcore/internal/paylock"
	"github.com/hrm8/walletcore/internal/payment"
	"github.com/hrm8/walletcore/internal/pricebook"
	"github.com/hrm8/walletcore/internal/server"
	"github.com/hrm8/walletcore/internal/wallet"
	"github.com/hrm8/walletcore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		paylock.Module,

		// Functional domains
		audit.Module,
		events.Module,
		company.Module,
		currency.Module,
		pricebook.Module,
		wallet.Module,
		commission.Module,
		payment.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
