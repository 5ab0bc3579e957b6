package processor

import (
	"go.uber.org/fx"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// NewHotspotProcessorBuilder creates a jsl.ComponentBuilder for HotspotProcessor.
func NewHotspotProcessorBuilder(app *appconfig.AppConfig) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewHotspotProcessor(app), nil
	}
}

// RegisterHotspotProcessorBuilder registers the builder under the JSL ref "hotspotProcessor".
func RegisterHotspotProcessorBuilder(jf *support.JobFactory, builder jsl.ComponentBuilder) {
	jf.RegisterComponentBuilder(HotspotProcessorName, builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", HotspotProcessorName)
}

// Module provides and registers HotspotProcessor.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewHotspotProcessorBuilder,
		fx.ResultTags(`name:"hotspotProcessor"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterHotspotProcessorBuilder,
		fx.ParamTags(``, `name:"hotspotProcessor"`),
	)),
)
