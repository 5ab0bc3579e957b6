package support

import (
	"go.uber.org/fx"
)

// Module defines Fx options related to JobFactory. Components register their builders
// with fx.Invoke against the provided *JobFactory.
var Module = fx.Options(
	fx.Provide(NewJobFactory),
)
