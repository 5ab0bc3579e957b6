package tasklet

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/snapshot"
	"github.com/tigerroll/ecoroute/internal/step"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	batchtest "github.com/tigerroll/ecoroute/pkg/batch/test"
)

const (
	geocodeCSV = "Address,Y,X,Zip Code\n" +
		"GSU Plaza,42.3505,-71.1054,02215\n" +
		"Fenway Campus Center,42.3419,-71.1005,02215\n"
	overridesCSV = "Address,Y,X,Zip Code\n" +
		"Medical Library,42.3368,-71.0718,02118\n"
	anchorsYAML = `campuses:
  charles-river:
    - {name: GSU Plaza, lat: 42.3505, lng: -71.1054, reason: student union}
    - {name: Agganis Arena, lat: 42.3522, lng: -71.1178, reason: events}
  medical:
    - {name: BMC Shapiro, lat: 42.3355, lng: -71.0725, reason: clinic}
`
	builtinAnchorsYAML = `campuses:
  fenway:
    - {name: Fenway Campus Center, lat: 42.3419, lng: -71.1005, reason: dining}
`
)

func writeInputs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func sampleRecords() []engine.HotspotRecord {
	return []engine.HotspotRecord{
		{
			Serial: "BB-1", Description: "GSU Plaza", Campus: engine.CampusCharlesRiver, Zip: "02215",
			Lat: engine.Float(42.3505), Lng: engine.Float(-71.1054),
			WasteFillPercent: engine.Float(92), HotspotScore: 81.2, PlacementStatus: engine.StatusHot,
		},
		{
			Serial: "BB-2", Description: "Loading dock",
			RecycleFillPercent: engine.Float(20), HotspotScore: 50, PlacementStatus: engine.StatusGood,
		},
	}
}

func sampleReference() engine.Reference {
	return engine.Reference{
		Primary:   engine.NewGeoTable(),
		Overrides: engine.NewGeoTable(),
		Anchors: engine.AnchorCatalog{
			engine.CampusCharlesRiver: {
				{Name: "GSU Plaza", Lat: 42.3505, Lng: -71.1054, Reason: "student union"},
				{Name: "Agganis Arena", Lat: 42.3522, Lng: -71.1178, Reason: "events"},
			},
			engine.CampusMedical: {
				{Name: "BMC Shapiro", Lat: 42.3355, Lng: -71.0725, Reason: "clinic"},
			},
		},
	}
}

type gauge struct {
	name   string
	campus string
	value  float64
}

type gaugeRecorder struct {
	metrics.NoOpMetricRecorder
	mu     sync.Mutex
	gauges []gauge
}

func (r *gaugeRecorder) RecordGauge(ctx context.Context, name string, value float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges = append(r.gauges, gauge{name: name, campus: tags["campus"], value: value})
}

func (r *gaugeRecorder) value(name, campus string) (float64, bool) {
	for _, g := range r.gauges {
		if g.name == name && g.campus == campus {
			return g.value, true
		}
	}
	return 0, false
}

type stubPublisher struct {
	err  error
	docs []*snapshot.Document
}

func (p *stubPublisher) Name() string { return "stub" }

func (p *stubPublisher) Publish(ctx context.Context, doc *snapshot.Document) error {
	p.docs = append(p.docs, doc)
	return p.err
}

func migratedSnapshotDB(t *testing.T) database.DBConnection {
	t.Helper()
	conn := batchtest.NewSQLiteConnection(t, "snapshot")
	require.NoError(t, conn.DB(context.Background()).AutoMigrate(&entity.Hotspot{}, &entity.SuggestedSite{}, &entity.SnapshotMeta{}))
	return conn
}

func TestReferenceLoadTasklet_LoadsAllInputs(t *testing.T) {
	conn, dir := batchtest.NewLocalStorage(t, "inputs")
	writeInputs(t, dir, map[string]string{
		"geocoded_table.csv": geocodeCSV,
		"overrides.csv":      overridesCSV,
		"anchors.yaml":       anchorsYAML,
	})
	app := appconfig.Default()
	app.Inputs.Overrides = "overrides.csv"
	app.Inputs.Anchors = "anchors.yaml"

	tasklet, err := NewReferenceLoadTasklet(app, batchtest.StorageResolver{"inputs": conn}, []byte(builtinAnchorsYAML), nil)
	require.NoError(t, err)

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "loadReference", nil)
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)

	ec, err := tasklet.GetExecutionContext(context.Background())
	require.NoError(t, err)
	ref, ok := model.Lookup[engine.Reference](ec, step.KeyReference)
	require.True(t, ok)
	assert.Equal(t, 2, ref.Primary.Len())
	assert.Equal(t, 1, ref.Overrides.Len())
	assert.Equal(t, 3, ref.Anchors.Len())
	assert.Equal(t, []engine.Campus{engine.CampusCharlesRiver, engine.CampusMedical}, ref.Anchors.Campuses())
}

func TestReferenceLoadTasklet_FallsBackToBuiltinAnchors(t *testing.T) {
	conn, dir := batchtest.NewLocalStorage(t, "inputs")
	writeInputs(t, dir, map[string]string{"geocoded_table.csv": geocodeCSV})

	tasklet, err := NewReferenceLoadTasklet(appconfig.Default(), batchtest.StorageResolver{"inputs": conn}, []byte(builtinAnchorsYAML), nil)
	require.NoError(t, err)

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "loadReference", nil)
	_, err = tasklet.Execute(context.Background(), se)
	require.NoError(t, err)

	ref, ok := model.Lookup[engine.Reference](tasklet.ec, step.KeyReference)
	require.True(t, ok)
	assert.Equal(t, 0, ref.Overrides.Len())
	assert.Equal(t, []engine.Campus{engine.CampusFenway}, ref.Anchors.Campuses())
}

func TestReferenceLoadTasklet_MissingGeocodeFails(t *testing.T) {
	conn, _ := batchtest.NewLocalStorage(t, "inputs")
	tasklet, err := NewReferenceLoadTasklet(appconfig.Default(), batchtest.StorageResolver{"inputs": conn}, []byte(builtinAnchorsYAML), nil)
	require.NoError(t, err)

	status, err := tasklet.Execute(context.Background(), batchtest.NewTestStepExecution("hotspotSnapshotJob", "loadReference", nil))
	assert.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, status)
}

func TestNewReferenceLoadTasklet_Validation(t *testing.T) {
	_, err := NewReferenceLoadTasklet(appconfig.Default(), batchtest.StorageResolver{}, nil, nil)
	assert.ErrorContains(t, err, "anchor catalog")

	app := appconfig.Default()
	app.Inputs.Geocode = ""
	_, err = NewReferenceLoadTasklet(app, batchtest.StorageResolver{}, []byte(builtinAnchorsYAML), nil)
	assert.ErrorContains(t, err, "geocode")

	tasklet, err := NewReferenceLoadTasklet(app, batchtest.StorageResolver{}, []byte(builtinAnchorsYAML), map[string]string{"geocode": "campus.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "campus.yaml", tasklet.props.Geocode)
}

func TestCoverageGapTasklet_AssemblesSnapshot(t *testing.T) {
	recorder := &gaugeRecorder{}
	tasklet, err := NewCoverageGapTasklet(appconfig.Default(), recorder, map[string]string{"concurrency": "1"})
	require.NoError(t, err)

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "detectCoverageGaps", map[string]interface{}{
		step.KeyReference: sampleReference(),
		step.KeyHotspots:  sampleRecords(),
	})
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)

	snap, ok := model.Lookup[engine.Snapshot](tasklet.ec, step.KeySnapshot)
	require.True(t, ok)
	assert.Len(t, snap.Hotspots, 2)

	require.Len(t, snap.Suggested[engine.CampusCharlesRiver], 1)
	assert.Equal(t, "Agganis Arena", snap.Suggested[engine.CampusCharlesRiver][0].Name)
	require.NotNil(t, snap.Suggested[engine.CampusCharlesRiver][0].NearestBinMeters)
	require.Len(t, snap.Suggested[engine.CampusMedical], 1)
	assert.Nil(t, snap.Suggested[engine.CampusMedical][0].NearestBinMeters)

	assert.Equal(t, 2, snap.Summary.Overall.Total)
	assert.Equal(t, 1, snap.Summary.Overall.Resolved)
	assert.Equal(t, 1, snap.Summary.Overall.Critical)
	assert.Equal(t, 2, snap.Summary.Overall.Suggested)

	v, ok := recorder.value(GaugeBins, "all")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, ok = recorder.value(GaugeSuggestedSite, string(engine.CampusMedical))
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = recorder.value(GaugeBins, "")
	assert.False(t, ok, "unresolved bins get no campus gauge")
}

func TestCoverageGapTasklet_ConcurrencyDoesNotChangeResult(t *testing.T) {
	run := func(concurrency string) engine.Snapshot {
		tasklet, err := NewCoverageGapTasklet(appconfig.Default(), nil, map[string]string{"concurrency": concurrency})
		require.NoError(t, err)
		se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "detectCoverageGaps", map[string]interface{}{
			step.KeyReference: sampleReference(),
			step.KeyHotspots:  sampleRecords(),
		})
		_, err = tasklet.Execute(context.Background(), se)
		require.NoError(t, err)
		snap, _ := model.Lookup[engine.Snapshot](tasklet.ec, step.KeySnapshot)
		return snap
	}
	assert.Equal(t, run("1"), run("0"))
}

func TestCoverageGapTasklet_RequiresStagedHotspots(t *testing.T) {
	tasklet, err := NewCoverageGapTasklet(appconfig.Default(), nil, nil)
	require.NoError(t, err)
	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "detectCoverageGaps", map[string]interface{}{
		step.KeyReference: sampleReference(),
	})
	status, err := tasklet.Execute(context.Background(), se)
	assert.ErrorContains(t, err, "staged hotspots")
	assert.Equal(t, model.ExitStatusFailed, status)

	_, err = NewCoverageGapTasklet(appconfig.Default(), nil, map[string]string{"concurrency": "-1"})
	assert.Error(t, err)
}

func assembledSnapshot() engine.Snapshot {
	records := sampleRecords()
	suggested := map[engine.Campus][]engine.SuggestedSite{
		engine.CampusMedical: {{
			AnchorPoint:     engine.AnchorPoint{Name: "BMC Shapiro", Lat: 42.3355, Lng: -71.0725, Reason: "clinic"},
			Campus:          engine.CampusMedical,
			PlacementStatus: engine.StatusSuggested,
		}},
	}
	return engine.Snapshot{
		Hotspots:  records,
		Suggested: suggested,
		Summary:   engine.Summarize(records, suggested, engine.DefaultSummaryConfig()),
	}
}

func TestSnapshotPublishTasklet_CommitsAndPublishes(t *testing.T) {
	conn := migratedSnapshotDB(t)
	failing := &stubPublisher{err: errors.New("redis down")}
	ok := &stubPublisher{}
	tasklet, err := NewSnapshotPublishTasklet(appconfig.Default(), batchtest.DBResolver{"snapshot": conn}, []snapshot.Publisher{failing, ok}, nil, nil)
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tasklet.now = func() time.Time { return fixed }

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "publishSnapshot", map[string]interface{}{
		step.KeySnapshot: assembledSnapshot(),
	})
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err, "publisher failures do not fail the step")
	assert.Equal(t, model.ExitStatusCompleted, status)

	runID, found := tasklet.ec.GetString(step.KeyRunID)
	require.True(t, found)
	generatedAt, found := model.Lookup[time.Time](tasklet.ec, step.KeyGeneratedAt)
	require.True(t, found)
	assert.True(t, fixed.Equal(generatedAt))

	published, err := snapshot.NewRepository(conn.DB(context.Background()), 0).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runID, published.Meta.RunID)
	assert.Equal(t, se.JobExecution.ID, published.Meta.JobExecutionID)
	assert.Equal(t, 2, published.Meta.BinCount)
	assert.Len(t, published.Hotspots, 2)
	assert.Len(t, published.Suggested[engine.CampusMedical], 1)
	assert.Equal(t, 1, published.Summary.Overall.Critical)

	require.Len(t, ok.docs, 1)
	assert.Equal(t, runID, ok.docs[0].RunID)
	assert.Len(t, failing.docs, 1)
}

func TestSnapshotPublishTasklet_SecondRunReplacesFirst(t *testing.T) {
	conn := migratedSnapshotDB(t)
	resolver := batchtest.DBResolver{"snapshot": conn}
	var runIDs []string
	for i := 0; i < 2; i++ {
		tasklet, err := NewSnapshotPublishTasklet(appconfig.Default(), resolver, nil, nil, map[string]string{"batchSize": "1"})
		require.NoError(t, err)
		se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "publishSnapshot", map[string]interface{}{
			step.KeySnapshot: assembledSnapshot(),
		})
		_, err = tasklet.Execute(context.Background(), se)
		require.NoError(t, err)
		id, _ := tasklet.ec.GetString(step.KeyRunID)
		runIDs = append(runIDs, id)
	}
	require.NotEqual(t, runIDs[0], runIDs[1])

	var count int64
	require.NoError(t, conn.DB(context.Background()).Model(&entity.Hotspot{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	require.NoError(t, conn.DB(context.Background()).Model(&entity.Hotspot{}).Where("run_id = ?", runIDs[0]).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSnapshotPublishTasklet_RequiresSnapshot(t *testing.T) {
	tasklet, err := NewSnapshotPublishTasklet(appconfig.Default(), batchtest.DBResolver{}, nil, nil, nil)
	require.NoError(t, err)
	status, err := tasklet.Execute(context.Background(), batchtest.NewTestStepExecution("hotspotSnapshotJob", "publishSnapshot", nil))
	assert.ErrorContains(t, err, "assembled snapshot")
	assert.Equal(t, model.ExitStatusFailed, status)
}

func TestParquetExportTasklet_DisabledIsNoOp(t *testing.T) {
	tasklet, err := NewParquetExportTasklet(appconfig.Default(), batchtest.DBResolver{}, batchtest.StorageResolver{}, nil)
	require.NoError(t, err)
	status, err := tasklet.Execute(context.Background(), batchtest.NewTestStepExecution("hotspotSnapshotJob", "exportSnapshot", nil))
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusNoOp, status)
}

func TestParquetExportTasklet_WritesPartitionedFiles(t *testing.T) {
	ctx := context.Background()
	db := migratedSnapshotDB(t)
	exports, dir := batchtest.NewLocalStorage(t, "exports")

	publish, err := NewSnapshotPublishTasklet(appconfig.Default(), batchtest.DBResolver{"snapshot": db}, nil, nil, nil)
	require.NoError(t, err)
	publish.now = func() time.Time { return time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC) }
	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "publishSnapshot", map[string]interface{}{
		step.KeySnapshot: assembledSnapshot(),
	})
	_, err = publish.Execute(ctx, se)
	require.NoError(t, err)
	for k, v := range publish.ec {
		se.JobExecution.ExecutionContext.Put(k, v)
	}

	app := appconfig.Default()
	app.Export.Enabled = true
	export, err := NewParquetExportTasklet(app, batchtest.DBResolver{"snapshot": db}, batchtest.StorageResolver{"exports": exports}, map[string]string{"compressionType": "UNCOMPRESSED"})
	require.NoError(t, err)
	status, err := export.Execute(ctx, se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)

	written, ok := model.Lookup[[]string](export.ec, step.KeyExportedFiles)
	require.True(t, ok)
	require.Len(t, written, 2)

	var files []string
	require.NoError(t, filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		files = append(files, filepath.ToSlash(rel))
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("PAR1")), rel)
		assert.True(t, bytes.HasSuffix(data, []byte("PAR1")), rel)
		return nil
	}))
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, "snapshots/dt=2026-03-14/"), f)
	}
}

func TestParquetExportTasklet_RequiresPublishedRun(t *testing.T) {
	app := appconfig.Default()
	app.Export.Enabled = true
	tasklet, err := NewParquetExportTasklet(app, batchtest.DBResolver{}, batchtest.StorageResolver{}, nil)
	require.NoError(t, err)
	status, err := tasklet.Execute(context.Background(), batchtest.NewTestStepExecution("hotspotSnapshotJob", "exportSnapshot", nil))
	assert.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, status)

	_, err = NewParquetExportTasklet(app, batchtest.DBResolver{}, batchtest.StorageResolver{}, map[string]string{"compressionType": "BROTLI9"})
	assert.Error(t, err)
}
