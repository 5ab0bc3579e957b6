package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/step"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	batchtest "github.com/tigerroll/ecoroute/pkg/batch/test"
)

func reference() engine.Reference {
	primary := engine.NewGeoTable()
	primary.Put("GSU Plaza", engine.GeoPoint{Lat: 42.3505, Lng: -71.1054, Zip: "02215"})
	return engine.Reference{Primary: primary, Overrides: engine.NewGeoTable(), Anchors: engine.AnchorCatalog{}}
}

func openProcessor(t *testing.T) *HotspotProcessor {
	t.Helper()
	p := NewHotspotProcessor(appconfig.Default())
	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "scoreHotspots", map[string]interface{}{
		step.KeyReference: reference(),
	})
	ctx := port.GetContextWithStepExecution(context.Background(), se)
	require.NoError(t, p.SetExecutionContext(ctx, se.ExecutionContext))
	return p
}

func TestHotspotProcessor_BuildsRecord(t *testing.T) {
	p := openProcessor(t)
	bin := &engine.FusedBinMetrics{
		Serial:      "BB-2",
		Description: "GSU Plaza",
		Waste:       &engine.StreamMetrics{DaysToFill: engine.Float(2), FillPercent: engine.Float(92)},
	}

	out, err := p.Process(context.Background(), bin)
	require.NoError(t, err)
	rec, ok := out.(engine.HotspotRecord)
	require.True(t, ok)
	assert.Equal(t, "BB-2", rec.Serial)
	assert.Equal(t, engine.CampusCharlesRiver, rec.Campus)
	require.True(t, rec.Resolved())
	assert.Equal(t, 42.3505, *rec.Lat)
	assert.Equal(t, engine.StatusHot, rec.PlacementStatus)
	assert.Equal(t, engine.Float(92), rec.WasteFillPercent)

	want := engine.NewSnapshotAssembler(engine.DefaultOptions(), reference()).BuildRecord(*bin)
	assert.Equal(t, want, rec)
}

func TestHotspotProcessor_UnknownLocationStaysUnresolved(t *testing.T) {
	p := openProcessor(t)
	out, err := p.Process(context.Background(), engine.FusedBinMetrics{
		Serial:  "BB-9",
		Recycle: &engine.StreamMetrics{FillPercent: engine.Float(10)},
	})
	require.NoError(t, err)
	rec := out.(engine.HotspotRecord)
	assert.False(t, rec.Resolved())
	assert.Equal(t, engine.CampusUnresolved, rec.Campus)
}

func TestHotspotProcessor_FiltersBinsWithoutData(t *testing.T) {
	p := openProcessor(t)
	_, err := p.Process(context.Background(), &engine.FusedBinMetrics{Serial: "BB-0"})
	assert.ErrorIs(t, err, port.ErrFilterItem)
}

func TestHotspotProcessor_RejectsUnexpectedItems(t *testing.T) {
	p := openProcessor(t)
	_, err := p.Process(context.Background(), "BB-1")
	assert.Error(t, err)
}

func TestHotspotProcessor_RequiresReference(t *testing.T) {
	p := NewHotspotProcessor(appconfig.Default())
	assert.Error(t, p.SetExecutionContext(context.Background(), nil), "no step execution")

	se := batchtest.NewTestStepExecution("hotspotSnapshotJob", "scoreHotspots", nil)
	ctx := port.GetContextWithStepExecution(context.Background(), se)
	assert.ErrorContains(t, p.SetExecutionContext(ctx, se.ExecutionContext), "reference data")

	_, err := p.Process(context.Background(), &engine.FusedBinMetrics{Serial: "BB-1"})
	assert.ErrorContains(t, err, "reference data was not loaded")
}
