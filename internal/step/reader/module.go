package reader

import (
	"go.uber.org/fx"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// NewTelemetryReaderBuilder creates a jsl.ComponentBuilder for TelemetryReader.
func NewTelemetryReaderBuilder(app *appconfig.AppConfig, storageResolver storage.StorageConnectionResolver) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewTelemetryReader(app, storageResolver, properties)
	}
}

// RegisterTelemetryReaderBuilder registers the builder under the JSL ref "telemetryReader".
func RegisterTelemetryReaderBuilder(jf *support.JobFactory, builder jsl.ComponentBuilder) {
	jf.RegisterComponentBuilder(TelemetryReaderName, builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", TelemetryReaderName)
}

// Module provides and registers TelemetryReader.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewTelemetryReaderBuilder,
		fx.ResultTags(`name:"telemetryReader"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterTelemetryReaderBuilder,
		fx.ParamTags(``, `name:"telemetryReader"`),
	)),
)
