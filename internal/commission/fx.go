package commission

import (
	"github.com/hrm8/walletcore/internal/commission/repository"
	"github.com/hrm8/walletcore/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
