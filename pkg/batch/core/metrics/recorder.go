package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics related to batch execution.
//
// It decouples job, step and chunk instrumentation from the metrics backend
// (Prometheus, OpenTelemetry Metrics, or nothing at all).
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd records the end of a JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	// RecordStepStart records the start of a StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	// RecordStepEnd records the end of a StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)
	// RecordItemRead records the successful reading of an item.
	RecordItemRead(ctx context.Context, stepName string)
	// RecordItemProcess records the successful processing of an item.
	RecordItemProcess(ctx context.Context, stepName string)
	// RecordItemWrite records the successful writing of count items.
	RecordItemWrite(ctx context.Context, stepName string, count int)
	// RecordChunkCommit records the commitment of a chunk of count items.
	RecordChunkCommit(ctx context.Context, stepName string, count int)

	// RecordDuration records the execution time of a named operation.
	//
	// tags: additional attributes, e.g. `{"table": "hotspots", "status": "success"}`.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)

	// RecordGauge sets a named gauge to value. Gauges with the same name must always be
	// recorded with the same tag keys.
	//
	// Example: RecordGauge(ctx, "hotspot_bins", 42, map[string]string{"campus": "fenway", "status": "hot"})
	RecordGauge(ctx context.Context, name string, value float64, tags map[string]string)
}
