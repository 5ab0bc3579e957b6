package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// OpenTelemetryRecorder is an implementation of metrics.MetricRecorder using OpenTelemetry metrics.
type OpenTelemetryRecorder struct {
	meter otelmetric.Meter

	jobs          otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	steps         otelmetric.Int64Counter
	stepDuration  otelmetric.Float64Histogram
	itemsRead     otelmetric.Int64Counter
	itemsProcess  otelmetric.Int64Counter
	itemsWritten  otelmetric.Int64Counter
	chunksCommits otelmetric.Int64Counter

	mu        sync.Mutex
	durations map[string]otelmetric.Float64Histogram
	gauges    map[string]otelmetric.Float64Gauge
}

// NewOpenTelemetryRecorder creates the instruments on a meter of provider.
func NewOpenTelemetryRecorder(provider otelmetric.MeterProvider) (*OpenTelemetryRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OpenTelemetryRecorder{
		meter:     meter,
		durations: make(map[string]otelmetric.Float64Histogram),
		gauges:    make(map[string]otelmetric.Float64Gauge),
	}
	var err error
	if r.jobs, err = meter.Int64Counter("ecoroute.job.executions"); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("ecoroute.job.duration", otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.steps, err = meter.Int64Counter("ecoroute.step.executions"); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("ecoroute.step.duration", otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.itemsRead, err = meter.Int64Counter("ecoroute.step.items.read"); err != nil {
		return nil, err
	}
	if r.itemsProcess, err = meter.Int64Counter("ecoroute.step.items.processed"); err != nil {
		return nil, err
	}
	if r.itemsWritten, err = meter.Int64Counter("ecoroute.step.items.written"); err != nil {
		return nil, err
	}
	if r.chunksCommits, err = meter.Int64Counter("ecoroute.step.chunks.committed"); err != nil {
		return nil, err
	}
	return r, nil
}

// NewMeterProvider creates an SDK meter provider exporting over OTLP (grpc or http) on a periodic reader.
func NewMeterProvider(ctx context.Context, cfg config.OTelConfig) (*sdkmetric.MeterProvider, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	case "http", "":
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol '%s'", cfg.Protocol)
	}
	if err != nil {
		return nil, err
	}

	interval := time.Duration(cfg.ExportIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(newResource(cfg)),
	), nil
}

func (r *OpenTelemetryRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	))
}

func (r *OpenTelemetryRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := otelmetric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	)
	r.jobs.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.steps.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("job_name", jobNameOf(execution)),
		attribute.String("step_name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	))
}

func (r *OpenTelemetryRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	attrs := otelmetric.WithAttributes(
		attribute.String("job_name", jobNameOf(execution)),
		attribute.String("step_name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	)
	r.steps.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemsRead.Add(ctx, 1, stepAttributes(ctx, stepName))
}

func (r *OpenTelemetryRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.itemsProcess.Add(ctx, 1, stepAttributes(ctx, stepName))
}

func (r *OpenTelemetryRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemsWritten.Add(ctx, int64(count), stepAttributes(ctx, stepName))
}

func (r *OpenTelemetryRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunksCommits.Add(ctx, 1, stepAttributes(ctx, stepName))
}

func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.mu.Lock()
	h, ok := r.durations[name]
	if !ok {
		var err error
		h, err = r.meter.Float64Histogram("ecoroute."+name+".duration", otelmetric.WithUnit("s"))
		if err != nil {
			r.mu.Unlock()
			logger.Warnf("Metrics: cannot create OTel histogram '%s': %v", name, err)
			return
		}
		r.durations[name] = h
	}
	r.mu.Unlock()
	h.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(tagAttributes(tags)...))
}

func (r *OpenTelemetryRecorder) RecordGauge(ctx context.Context, name string, value float64, tags map[string]string) {
	r.mu.Lock()
	g, ok := r.gauges[name]
	if !ok {
		var err error
		g, err = r.meter.Float64Gauge("ecoroute." + name)
		if err != nil {
			r.mu.Unlock()
			logger.Warnf("Metrics: cannot create OTel gauge '%s': %v", name, err)
			return
		}
		r.gauges[name] = g
	}
	r.mu.Unlock()
	g.Record(ctx, value, otelmetric.WithAttributes(tagAttributes(tags)...))
}

func stepAttributes(ctx context.Context, stepName string) otelmetric.MeasurementOption {
	return otelmetric.WithAttributes(
		attribute.String("job_name", jobNameFromContext(ctx)),
		attribute.String("step_name", stepName),
	)
}

func tagAttributes(tags map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
