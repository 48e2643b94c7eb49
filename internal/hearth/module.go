package hearth

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the Runtime to the fx graph and wires its Start/Stop
// into fx.Lifecycle, mirroring the teacher's cmd/fx.go NewApp.
var Module = fx.Module("hearth",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, rt *Runtime) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return rt.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return rt.Stop(ctx) },
	})
}
