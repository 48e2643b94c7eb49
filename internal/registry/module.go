package registry

import "go.uber.org/fx"

// Module provides the service Registry to the fx graph. Grounded on
// internal/domain/registry/module.go's fx.Module wiring pattern.
var Module = fx.Module("registry",
	fx.Provide(New),
)
