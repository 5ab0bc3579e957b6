package step_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/step"
	"github.com/tigerroll/ecoroute/internal/step/processor"
	"github.com/tigerroll/ecoroute/internal/step/reader"
	"github.com/tigerroll/ecoroute/internal/step/writer"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/engine/step/item"
	batchtest "github.com/tigerroll/ecoroute/pkg/batch/test"
)

const telemetryCSV = "Serial,Description,Stream,Avg Days to Fill,Avg Fill Percent,Estimated Days to 80\n" +
	"BB-3,Medical Library,recycle,12,55,8\n" +
	"BB-2,GSU Plaza,waste,2,92,0.5\n" +
	"BB-2,GSU Plaza,recycle,9,40,6\n" +
	"BB-1,Loading dock,waste,25,10,30\n" +
	"BB-4,Empty,waste,,,\n"

func TestScoreHotspotsChunkStep_StagesRecordsOnJobContext(t *testing.T) {
	conn, dir := batchtest.NewLocalStorage(t, "inputs")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "telemetry.csv"), []byte(telemetryCSV), 0o644))
	app := appconfig.Default()

	primary := engine.NewGeoTable()
	primary.Put("GSU Plaza", engine.GeoPoint{Lat: 42.3505, Lng: -71.1054, Zip: "02215"})
	overrides := engine.NewGeoTable()
	overrides.Put("Medical Library", engine.GeoPoint{Lat: 42.3368, Lng: -71.0718, Zip: "02118"})
	ref := engine.Reference{Primary: primary, Overrides: overrides, Anchors: engine.AnchorCatalog{}}

	r, err := reader.NewTelemetryReader(app, batchtest.StorageResolver{"inputs": conn}, nil)
	require.NoError(t, err)
	s := item.NewChunkStep("scoreHotspots", r, processor.NewHotspotProcessor(app), writer.NewHotspotStagingWriter(), 2, nil, nil,
		&model.ExecutionContextPromotion{Keys: []string{step.KeyHotspots, step.KeyTelemetryStats}})

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "scoreHotspots", map[string]interface{}{
		step.KeyReference: ref,
	})
	require.NoError(t, s.Execute(context.Background(), se.JobExecution, se))

	assert.Equal(t, 3, se.ReadCount)
	assert.Equal(t, 3, se.WriteCount)
	assert.Equal(t, 2, se.CommitCount)

	records, err := step.FromJob[[]engine.HotspotRecord](se, step.KeyHotspots)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "BB-1", records[0].Serial)
	assert.Equal(t, engine.CampusUnresolved, records[0].Campus)
	assert.Equal(t, engine.CampusCharlesRiver, records[1].Campus)
	assert.Equal(t, engine.StatusHot, records[1].PlacementStatus)
	assert.Equal(t, engine.CampusMedical, records[2].Campus)

	_, ok := se.JobExecution.ExecutionContext.Get(step.KeyTelemetryStats)
	assert.True(t, ok)
}

func TestScoreHotspotsChunkStep_FailsWithoutReference(t *testing.T) {
	conn, dir := batchtest.NewLocalStorage(t, "inputs")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "telemetry.csv"), []byte(telemetryCSV), 0o644))
	app := appconfig.Default()

	r, err := reader.NewTelemetryReader(app, batchtest.StorageResolver{"inputs": conn}, nil)
	require.NoError(t, err)
	s := item.NewChunkStep("scoreHotspots", r, processor.NewHotspotProcessor(app), writer.NewHotspotStagingWriter(), 2, nil, nil, nil)

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "scoreHotspots", nil)
	assert.Error(t, s.Execute(context.Background(), se.JobExecution, se))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}
