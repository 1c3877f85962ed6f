package payment

import (
	"github.com/hrm8/walletcore/internal/payment/repository"
	"github.com/hrm8/walletcore/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
