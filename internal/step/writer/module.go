package writer

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// NewHotspotStagingWriterBuilder creates a jsl.ComponentBuilder for HotspotStagingWriter.
func NewHotspotStagingWriterBuilder() jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewHotspotStagingWriter(), nil
	}
}

// RegisterHotspotStagingWriterBuilder registers the builder under the JSL ref "hotspotStagingWriter".
func RegisterHotspotStagingWriterBuilder(jf *support.JobFactory, builder jsl.ComponentBuilder) {
	jf.RegisterComponentBuilder(HotspotStagingWriterName, builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", HotspotStagingWriterName)
}

// Module provides and registers HotspotStagingWriter.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewHotspotStagingWriterBuilder,
		fx.ResultTags(`name:"hotspotStagingWriter"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterHotspotStagingWriterBuilder,
		fx.ParamTags(``, `name:"hotspotStagingWriter"`),
	)),
)
