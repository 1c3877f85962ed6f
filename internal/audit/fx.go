package audit

import (
	"github.com/hrm8/walletcore/internal/audit/repository"
	"github.com/hrm8/walletcore/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
