package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// NewLoggingJobListenerBuilder creates a builder for LoggingJobListener.
func NewLoggingJobListenerBuilder() jsl.JobExecutionListenerBuilder {
	return func(_ *config.Config, _ map[string]string) (port.JobExecutionListener, error) {
		return NewLoggingJobListener(), nil
	}
}

// NewLoggingStepListenerBuilder creates a builder for LoggingStepListener.
func NewLoggingStepListenerBuilder() jsl.StepExecutionListenerBuilder {
	return func(_ *config.Config, _ map[string]string) (port.StepExecutionListener, error) {
		return NewLoggingStepListener(), nil
	}
}

// NewLoggingChunkListenerBuilder creates a builder for LoggingChunkListener.
func NewLoggingChunkListenerBuilder() jsl.ChunkListenerBuilder {
	return func(_ *config.Config, _ map[string]string) (port.ChunkListener, error) {
		return NewLoggingChunkListener(), nil
	}
}

// AllLoggingListenerBuilders receives all logging listener builders from Fx.
type AllLoggingListenerBuilders struct {
	fx.In
	JobListenerBuilder   jsl.JobExecutionListenerBuilder  `name:"loggingJobListener"`
	StepListenerBuilder  jsl.StepExecutionListenerBuilder `name:"loggingStepListener"`
	ChunkListenerBuilder jsl.ChunkListenerBuilder         `name:"loggingChunkListener"`
}

// RegisterAllLoggingListeners registers all logging listener builders with the JobFactory.
func RegisterAllLoggingListeners(jf *support.JobFactory, builders AllLoggingListenerBuilders) {
	jf.RegisterJobListenerBuilder("loggingJobListener", builders.JobListenerBuilder)
	jf.RegisterStepListenerBuilder("loggingStepListener", builders.StepListenerBuilder)
	jf.RegisterChunkListenerBuilder("loggingChunkListener", builders.ChunkListenerBuilder)
	logger.Debugf("All logging listeners registered with JobFactory.")
}

// Module provides the logging listeners.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingJobListenerBuilder, fx.ResultTags(`name:"loggingJobListener"`))),
	fx.Provide(fx.Annotate(NewLoggingStepListenerBuilder, fx.ResultTags(`name:"loggingStepListener"`))),
	fx.Provide(fx.Annotate(NewLoggingChunkListenerBuilder, fx.ResultTags(`name:"loggingChunkListener"`))),
	fx.Invoke(RegisterAllLoggingListeners),
)
