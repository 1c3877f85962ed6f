package pricebook

import (
	"github.com/hrm8/walletcore/internal/pricebook/repository"
	"github.com/hrm8/walletcore/internal/pricebook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricebook.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
