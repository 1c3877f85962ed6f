package wallet

import (
	"github.com/hrm8/walletcore/internal/wallet/repository"
	"github.com/hrm8/walletcore/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
