package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

func newStepContext() (context.Context, *model.StepExecution) {
	je := model.NewJobExecution("hotspotSnapshotJob", model.NewJobParameters())
	se := model.NewStepExecution(je, "scoreHotspots")
	return port.GetContextWithStepExecution(context.Background(), se), se
}

func TestPrometheusRecorder_ItemCounters(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx, _ := newStepContext()

	r.RecordItemRead(ctx, "scoreHotspots")
	r.RecordItemRead(ctx, "scoreHotspots")
	r.RecordItemProcess(ctx, "scoreHotspots")
	r.RecordItemWrite(ctx, "scoreHotspots", 7)
	r.RecordChunkCommit(ctx, "scoreHotspots", 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stepReadCount.WithLabelValues("hotspotSnapshotJob", "scoreHotspots")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepProcessCount.WithLabelValues("hotspotSnapshotJob", "scoreHotspots")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.stepWriteCount.WithLabelValues("hotspotSnapshotJob", "scoreHotspots")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepCommitCount.WithLabelValues("hotspotSnapshotJob", "scoreHotspots")))
}

func TestPrometheusRecorder_JobLifecycle(t *testing.T) {
	r := NewPrometheusRecorder()
	je := model.NewJobExecution("hotspotSnapshotJob", model.NewJobParameters())
	je.MarkAsStarted()
	r.RecordJobStart(context.Background(), je)
	je.MarkAsCompleted()
	r.RecordJobEnd(context.Background(), je)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("hotspotSnapshotJob", "STARTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("hotspotSnapshotJob", "COMPLETED")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.jobDurationSeconds))
}

func TestPrometheusRecorder_Gauges(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordGauge(ctx, "hotspot_bins", 4, map[string]string{"campus": "fenway", "status": "hot"})
	r.RecordGauge(ctx, "hotspot_bins", 6, map[string]string{"campus": "fenway", "status": "hot"})
	r.RecordGauge(ctx, "hotspot_bins", 2, map[string]string{"campus": "medical", "status": "cold"})

	gauge := r.gauges["hotspot_bins"]
	require.NotNil(t, gauge)
	assert.Equal(t, 6.0, testutil.ToFloat64(gauge.WithLabelValues("fenway", "hot")))
	assert.Equal(t, 2.0, testutil.ToFloat64(gauge.WithLabelValues("medical", "cold")))

	// A different label set for an existing name is dropped, not a panic.
	r.RecordGauge(ctx, "hotspot_bins", 1, map[string]string{"campus": "fenway"})
	assert.Equal(t, 6.0, testutil.ToFloat64(gauge.WithLabelValues("fenway", "hot")))
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordDuration(context.Background(), "chunk_write", 250*time.Millisecond, map[string]string{"step": "scoreHotspots"})
	r.RecordGauge(context.Background(), "suggested_sites", 3, map[string]string{"campus": "charles-river"})

	path := filepath.Join(t.TempDir(), "ecoroute.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `ecoroute_suggested_sites{campus="charles-river"} 3`)
	assert.Contains(t, text, `ecoroute_chunk_write_duration_seconds_count{step="scoreHotspots"} 1`)
}

func TestPrometheusRecorder_GatherGaugeFamily(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordGauge(context.Background(), "suggested_sites", 3, map[string]string{"campus": "charles-river"})
	r.RecordGauge(context.Background(), "suggested_sites", 1, map[string]string{"campus": "fenway"})

	families, err := r.GetRegistry().Gather()
	require.NoError(t, err)

	var family *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "ecoroute_suggested_sites" {
			family = f
		}
	}
	require.NotNil(t, family)
	assert.Equal(t, dto.MetricType_GAUGE, family.GetType())

	values := map[string]float64{}
	for _, m := range family.GetMetric() {
		require.Len(t, m.GetLabel(), 1)
		values[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"charles-river": 3, "fenway": 1}, values)
}
