package paylock

import "go.uber.org/fx"

var Module = fx.Module("paylock",
	fx.Provide(NewClient),
	fx.Provide(NewLocker),
)
