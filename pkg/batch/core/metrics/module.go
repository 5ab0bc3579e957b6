package metrics

import (
	"go.uber.org/fx"
)

// Module provides the no-op recorder and tracer. Infrastructure modules decorate them with real
// backends when metrics or tracing are enabled in configuration.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
