package tasklet

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/internal/step"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	"github.com/tigerroll/ecoroute/pkg/batch/component/step/reader"
	"github.com/tigerroll/ecoroute/pkg/batch/component/step/writer"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// ParquetExportTaskletName is the JSL reference of ParquetExportTasklet.
const ParquetExportTaskletName = "parquetExportTasklet"

// ParquetExportConfig holds the JSL properties of ParquetExportTasklet. Unset properties
// fall back to the export and publish sections of the configuration.
type ParquetExportConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DBRef           string `yaml:"dbRef"`
	StorageRef      string `yaml:"storageRef"`
	OutputBaseDir   string `yaml:"outputBaseDir"`
	CompressionType string `yaml:"compressionType"`
}

// ParquetExportTasklet reads the committed snapshot tables back and uploads them as Parquet
// under <outputBaseDir>/dt=YYYY-MM-DD/, one file per table. It returns NO_OP when export is disabled.
type ParquetExportTasklet struct {
	props           ParquetExportConfig
	dbResolver      database.DBConnectionResolver
	storageResolver storage.StorageConnectionResolver
	ec              model.ExecutionContext
}

var _ port.Tasklet = (*ParquetExportTasklet)(nil)

// NewParquetExportTasklet creates a ParquetExportTasklet.
func NewParquetExportTasklet(
	app *appconfig.AppConfig,
	dbResolver database.DBConnectionResolver,
	storageResolver storage.StorageConnectionResolver,
	properties map[string]string,
) (*ParquetExportTasklet, error) {
	props := ParquetExportConfig{
		Enabled:         app.Export.Enabled,
		DBRef:           app.Publish.DBRef,
		StorageRef:      app.Export.StorageRef,
		OutputBaseDir:   app.Export.OutputBaseDir,
		CompressionType: "SNAPPY",
	}
	if err := configbinder.BindProperties(properties, &props); err != nil {
		return nil, exception.NewBatchError(ParquetExportTaskletName, "invalid properties", err, false, false)
	}
	if props.Enabled && (props.DBRef == "" || props.StorageRef == "" || props.OutputBaseDir == "") {
		return nil, exception.NewBatchErrorf(ParquetExportTaskletName, "dbRef, storageRef and outputBaseDir are required when export is enabled")
	}
	if _, err := writer.CompressionCodec(props.CompressionType); err != nil {
		return nil, exception.NewBatchError(ParquetExportTaskletName, "invalid properties", err, false, false)
	}
	return &ParquetExportTasklet{
		props:           props,
		dbResolver:      dbResolver,
		storageResolver: storageResolver,
		ec:              model.NewExecutionContext(),
	}, nil
}

// Execute implements port.Tasklet.
func (t *ParquetExportTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	if !t.props.Enabled {
		logger.Infof("Parquet export is disabled.")
		return model.ExitStatusNoOp, nil
	}
	runID, err := step.FromJob[string](stepExecution, step.KeyRunID)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(ParquetExportTaskletName, "no published snapshot to export", err, false, false)
	}
	generatedAt, err := step.FromJob[time.Time](stepExecution, step.KeyGeneratedAt)
	if err != nil {
		generatedAt = time.Now().UTC()
	}
	conn, err := t.dbResolver.ResolveDBConnection(ctx, t.props.DBRef)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(ParquetExportTaskletName, "failed to resolve database '"+t.props.DBRef+"'", err, false, false)
	}
	db := conn.DB(ctx)
	partition := "dt=" + generatedAt.Format("2006-01-02")

	var written []string
	var result *multierror.Error
	hotspots, err := exportTable[entity.Hotspot](ctx, t, "hotspots", partition, func(ctx context.Context) *gorm.DB {
		return db.WithContext(ctx).Model(&entity.Hotspot{}).Where("run_id = ?", runID).Order("serial")
	})
	written = append(written, hotspots...)
	result = multierror.Append(result, err)

	sites, err := exportTable[entity.SuggestedSite](ctx, t, "suggested_sites", partition, func(ctx context.Context) *gorm.DB {
		return db.WithContext(ctx).Model(&entity.SuggestedSite{}).Where("run_id = ?", runID).Order("campus").Order("position")
	})
	written = append(written, sites...)
	result = multierror.Append(result, err)

	t.ec.Put(step.KeyExportedFiles, written)
	if err := result.ErrorOrNil(); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(ParquetExportTaskletName, "snapshot export failed", err, false, true)
	}
	logger.Infof("Snapshot %s exported: %v", runID, written)
	return model.ExitStatusCompleted, nil
}

// exportTable streams one table through a cursor reader into a ParquetWriter.
func exportTable[T any](ctx context.Context, t *ParquetExportTasklet, table, partition string, query func(context.Context) *gorm.DB) ([]string, error) {
	r := reader.NewGormCursorReader[T](table+"Reader", query)
	w, err := writer.NewParquetWriter[T](table+"Writer", map[string]string{
		"storageRef":      t.props.StorageRef,
		"outputBaseDir":   t.props.OutputBaseDir,
		"compressionType": t.props.CompressionType,
		"filePrefix":      table,
	}, t.storageResolver, func(T) (string, error) { return partition, nil })
	if err != nil {
		return nil, err
	}

	if err := r.Open(ctx, nil); err != nil {
		return nil, err
	}
	rows, err := r.ReadAll(ctx)
	if cerr := r.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		logger.Infof("Parquet export: table %s has no rows for this snapshot.", table)
		return nil, nil
	}

	if err := w.Open(ctx, nil); err != nil {
		return nil, err
	}
	if err := w.Write(ctx, rows); err != nil {
		return nil, err
	}
	if err := w.Close(ctx); err != nil {
		return w.Written(), err
	}
	return w.Written(), nil
}

// Close implements port.Tasklet.
func (t *ParquetExportTasklet) Close(ctx context.Context) error { return nil }

// SetExecutionContext implements port.Tasklet.
func (t *ParquetExportTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

// GetExecutionContext implements port.Tasklet.
func (t *ParquetExportTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
