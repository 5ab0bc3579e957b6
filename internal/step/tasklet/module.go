package tasklet

import (
	"go.uber.org/fx"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/snapshot"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// TaskletBuilderParams defines the dependencies of the tasklet component builders.
type TaskletBuilderParams struct {
	fx.In
	App             *appconfig.AppConfig
	DBResolver      database.DBConnectionResolver
	StorageResolver storage.StorageConnectionResolver
	Recorder        metrics.MetricRecorder
	Publishers      []snapshot.Publisher `group:"snapshot_publishers"`
	DefaultAnchors  []byte               `name:"defaultAnchors"`
}

// NewReferenceLoadTaskletBuilder creates a jsl.ComponentBuilder for ReferenceLoadTasklet.
func NewReferenceLoadTaskletBuilder(p TaskletBuilderParams) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewReferenceLoadTasklet(p.App, p.StorageResolver, p.DefaultAnchors, properties)
	}
}

// NewCoverageGapTaskletBuilder creates a jsl.ComponentBuilder for CoverageGapTasklet.
func NewCoverageGapTaskletBuilder(p TaskletBuilderParams) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewCoverageGapTasklet(p.App, p.Recorder, properties)
	}
}

// NewSnapshotPublishTaskletBuilder creates a jsl.ComponentBuilder for SnapshotPublishTasklet.
func NewSnapshotPublishTaskletBuilder(p TaskletBuilderParams) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewSnapshotPublishTasklet(p.App, p.DBResolver, p.Publishers, p.Recorder, properties)
	}
}

// NewParquetExportTaskletBuilder creates a jsl.ComponentBuilder for ParquetExportTasklet.
func NewParquetExportTaskletBuilder(p TaskletBuilderParams) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewParquetExportTasklet(p.App, p.DBResolver, p.StorageResolver, properties)
	}
}

type taskletBuilders struct {
	fx.In
	ReferenceLoad   jsl.ComponentBuilder `name:"referenceLoadTasklet"`
	CoverageGap     jsl.ComponentBuilder `name:"coverageGapTasklet"`
	SnapshotPublish jsl.ComponentBuilder `name:"snapshotPublishTasklet"`
	ParquetExport   jsl.ComponentBuilder `name:"parquetExportTasklet"`
}

// RegisterTaskletBuilders registers the tasklet builders with the JobFactory.
func RegisterTaskletBuilders(jf *support.JobFactory, b taskletBuilders) {
	for name, builder := range map[string]jsl.ComponentBuilder{
		ReferenceLoadTaskletName:   b.ReferenceLoad,
		CoverageGapTaskletName:     b.CoverageGap,
		SnapshotPublishTaskletName: b.SnapshotPublish,
		ParquetExportTaskletName:   b.ParquetExport,
	} {
		jf.RegisterComponentBuilder(name, builder)
		logger.Debugf("Component '%s' was registered with JobFactory.", name)
	}
}

// Module provides and registers the tasklets of the hotspot snapshot job.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewReferenceLoadTaskletBuilder, fx.ResultTags(`name:"referenceLoadTasklet"`)),
		fx.Annotate(NewCoverageGapTaskletBuilder, fx.ResultTags(`name:"coverageGapTasklet"`)),
		fx.Annotate(NewSnapshotPublishTaskletBuilder, fx.ResultTags(`name:"snapshotPublishTasklet"`)),
		fx.Annotate(NewParquetExportTaskletBuilder, fx.ResultTags(`name:"parquetExportTasklet"`)),
	),
	fx.Invoke(RegisterTaskletBuilders),
)
