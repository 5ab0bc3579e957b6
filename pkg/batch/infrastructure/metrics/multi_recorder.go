package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
)

// MultiRecorder fans every measurement out to several recorders.
type MultiRecorder []metrics.MetricRecorder

func (m MultiRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	for _, r := range m {
		r.RecordJobStart(ctx, execution)
	}
}

func (m MultiRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	for _, r := range m {
		r.RecordJobEnd(ctx, execution)
	}
}

func (m MultiRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	for _, r := range m {
		r.RecordStepStart(ctx, execution)
	}
}

func (m MultiRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	for _, r := range m {
		r.RecordStepEnd(ctx, execution)
	}
}

func (m MultiRecorder) RecordItemRead(ctx context.Context, stepName string) {
	for _, r := range m {
		r.RecordItemRead(ctx, stepName)
	}
}

func (m MultiRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	for _, r := range m {
		r.RecordItemProcess(ctx, stepName)
	}
}

func (m MultiRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	for _, r := range m {
		r.RecordItemWrite(ctx, stepName, count)
	}
}

func (m MultiRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	for _, r := range m {
		r.RecordChunkCommit(ctx, stepName, count)
	}
}

func (m MultiRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range m {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

func (m MultiRecorder) RecordGauge(ctx context.Context, name string, value float64, tags map[string]string) {
	for _, r := range m {
		r.RecordGauge(ctx, name, value, tags)
	}
}

var _ metrics.MetricRecorder = MultiRecorder(nil)
