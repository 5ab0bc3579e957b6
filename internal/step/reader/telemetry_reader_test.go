package reader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/ingest"
	"github.com/tigerroll/ecoroute/internal/step"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	batchtest "github.com/tigerroll/ecoroute/pkg/batch/test"
)

const telemetryCSV = "Serial,Description,Stream,Avg Days to Fill,Avg Fill Percent,Estimated Days to 80\n" +
	"BB-2,GSU Plaza,waste,2,92,0.5\n" +
	"BB-2,GSU Plaza,recycle,9,40,6\n" +
	"BB-1,Fenway Campus Center,waste,25,10,30\n" +
	"BB-3,Nowhere,compost,1,1,1\n" +
	"BB-4,Empty,waste,,,\n"

func newReader(t *testing.T) *TelemetryReader {
	t.Helper()
	conn, dir := batchtest.NewLocalStorage(t, "inputs")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "telemetry.csv"), []byte(telemetryCSV), 0o644))
	r, err := NewTelemetryReader(appconfig.Default(), batchtest.StorageResolver{"inputs": conn}, nil)
	require.NoError(t, err)
	return r
}

func readAll(t *testing.T, r *TelemetryReader) []string {
	t.Helper()
	var serials []string
	for {
		item, err := r.Read(context.Background())
		if err == io.EOF {
			return serials
		}
		require.NoError(t, err)
		bin, ok := item.(*engine.FusedBinMetrics)
		require.True(t, ok, "got %T", item)
		serials = append(serials, bin.Serial)
	}
}

func TestTelemetryReader_ReadsFusedBinsInSerialOrder(t *testing.T) {
	r := newReader(t)
	ec := model.NewExecutionContext()
	require.NoError(t, r.Open(context.Background(), ec))
	defer r.Close(context.Background())

	first, err := r.Read(context.Background())
	require.NoError(t, err)
	bin := first.(*engine.FusedBinMetrics)
	assert.Equal(t, "BB-1", bin.Serial)
	assert.NotNil(t, bin.Waste)
	assert.Nil(t, bin.Recycle)

	assert.Equal(t, []string{"BB-2"}, readAll(t, r))

	stats, ok := model.Lookup[ingest.TelemetryStats](ec, step.KeyTelemetryStats)
	require.True(t, ok)
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 4, stats.Decoded)
	assert.Equal(t, 1, stats.UnknownStream)

	n, ok := ec.GetInt(readCountKey)
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestTelemetryReader_ResumesFromReadCount(t *testing.T) {
	r := newReader(t)
	ec := model.NewExecutionContext()
	ec.Put(readCountKey, 1)
	require.NoError(t, r.Open(context.Background(), ec))
	assert.Equal(t, []string{"BB-2"}, readAll(t, r))
}

func TestTelemetryReader_MissingFileFailsOpen(t *testing.T) {
	conn, _ := batchtest.NewLocalStorage(t, "inputs")
	r, err := NewTelemetryReader(appconfig.Default(), batchtest.StorageResolver{"inputs": conn}, map[string]string{"telemetry": "absent.csv"})
	require.NoError(t, err)
	assert.Error(t, r.Open(context.Background(), model.NewExecutionContext()))
}

func TestTelemetryReader_UnknownStorageFailsOpen(t *testing.T) {
	r, err := NewTelemetryReader(appconfig.Default(), batchtest.StorageResolver{}, nil)
	require.NoError(t, err)
	assert.ErrorContains(t, r.Open(context.Background(), model.NewExecutionContext()), "inputs")
}
