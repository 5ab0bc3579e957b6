package tasklet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/snapshot"
	"github.com/tigerroll/ecoroute/internal/step"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// SnapshotPublishTaskletName is the JSL reference of SnapshotPublishTasklet.
const SnapshotPublishTaskletName = "snapshotPublishTasklet"

// SnapshotPublishConfig holds the JSL properties of SnapshotPublishTasklet.
type SnapshotPublishConfig struct {
	DBRef string `yaml:"dbRef"`
	// BatchSize bounds the rows per INSERT statement.
	BatchSize int `yaml:"batchSize"`
}

// SnapshotPublishTasklet commits the assembled snapshot to the snapshot tables and then
// hands it to the optional publishers. It is the only writer of the published snapshot.
type SnapshotPublishTasklet struct {
	props      SnapshotPublishConfig
	dbResolver database.DBConnectionResolver
	publishers []snapshot.Publisher
	recorder   metrics.MetricRecorder
	now        func() time.Time
	ec         model.ExecutionContext
}

var _ port.Tasklet = (*SnapshotPublishTasklet)(nil)

// NewSnapshotPublishTasklet creates a SnapshotPublishTasklet.
func NewSnapshotPublishTasklet(
	app *appconfig.AppConfig,
	dbResolver database.DBConnectionResolver,
	publishers []snapshot.Publisher,
	recorder metrics.MetricRecorder,
	properties map[string]string,
) (*SnapshotPublishTasklet, error) {
	props := SnapshotPublishConfig{DBRef: app.Publish.DBRef, BatchSize: snapshot.DefaultInsertBatchSize}
	if err := configbinder.BindProperties(properties, &props); err != nil {
		return nil, exception.NewBatchError(SnapshotPublishTaskletName, "invalid properties", err, false, false)
	}
	if props.DBRef == "" {
		return nil, exception.NewBatchErrorf(SnapshotPublishTaskletName, "property 'dbRef' is required")
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &SnapshotPublishTasklet{
		props:      props,
		dbResolver: dbResolver,
		publishers: publishers,
		recorder:   recorder,
		now:        time.Now,
		ec:         model.NewExecutionContext(),
	}, nil
}

// Execute implements port.Tasklet.
func (t *SnapshotPublishTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	snap, err := step.FromJob[engine.Snapshot](stepExecution, step.KeySnapshot)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(SnapshotPublishTaskletName, "assembled snapshot unavailable", err, false, false)
	}
	conn, err := t.dbResolver.ResolveDBConnection(ctx, t.props.DBRef)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(SnapshotPublishTaskletName, "failed to resolve database '"+t.props.DBRef+"'", err, false, false)
	}

	summary, err := json.Marshal(snap.Summary)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(SnapshotPublishTaskletName, "failed to encode summary", err, false, false)
	}
	meta := entity.SnapshotMeta{
		RunID:          uuid.NewString(),
		GeneratedAt:    t.now().UTC(),
		BinCount:       snap.Summary.Overall.Total,
		ResolvedCount:  snap.Summary.Overall.Resolved,
		SuggestedCount: snap.Summary.Overall.Suggested,
		SummaryJSON:    string(summary),
	}
	if stepExecution.JobExecution != nil {
		meta.JobExecutionID = stepExecution.JobExecution.ID
	}

	start := time.Now()
	repo := snapshot.NewRepository(conn.DB(ctx), t.props.BatchSize)
	if err := repo.Replace(ctx, meta, entity.HotspotRows(meta.RunID, snap.Hotspots), entity.SuggestedSiteRows(meta.RunID, snap.Suggested)); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(SnapshotPublishTaskletName, "failed to replace snapshot tables", err, false, true)
	}
	t.recorder.RecordDuration(ctx, "snapshot_replace", time.Since(start), map[string]string{"db": t.props.DBRef})
	logger.Infof("Snapshot %s committed: %d hotspots, %d suggested sites.", meta.RunID, len(snap.Hotspots), meta.SuggestedCount)

	t.ec.Put(step.KeyRunID, meta.RunID)
	t.ec.Put(step.KeyGeneratedAt, meta.GeneratedAt)

	// The tables are the source of truth; a stale cache or a missed event is only logged.
	if err := snapshot.PublishAll(ctx, t.publishers, snapshot.NewDocument(meta, snap)); err != nil {
		logger.Warnf("Snapshot %s committed but not every publisher succeeded: %v", meta.RunID, err)
	}
	return model.ExitStatusCompleted, nil
}

// Close implements port.Tasklet.
func (t *SnapshotPublishTasklet) Close(ctx context.Context) error { return nil }

// SetExecutionContext implements port.Tasklet.
func (t *SnapshotPublishTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

// GetExecutionContext implements port.Tasklet.
func (t *SnapshotPublishTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
