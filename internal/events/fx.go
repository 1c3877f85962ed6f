package events

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
	fx.Provide(NewLogSink),
	fx.Provide(NewDispatcher),
	fx.Invoke(func(lc fx.Lifecycle, d *Dispatcher) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return d.Start(ctx) },
			OnStop:  func(ctx context.Context) error { return d.Stop(ctx) },
		})
	}),
)
