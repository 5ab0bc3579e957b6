// Package metrics provides the Prometheus and OpenTelemetry backends of the batch metric
// recorder and tracer.
package metrics

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// DecorateRecorder replaces the no-op recorder with the backends enabled in configuration.
// Collected Prometheus metrics are pushed and/or written to a textfile when the application stops.
func DecorateRecorder(lc fx.Lifecycle, cfg *config.Config, recorder metrics.MetricRecorder) (metrics.MetricRecorder, error) {
	mc := cfg.Ecoroute.Infrastructure.Metrics
	var recorders MultiRecorder

	if mc.Prometheus.Enabled {
		prom := NewPrometheusRecorder()
		recorders = append(recorders, prom)
		pc := mc.Prometheus
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				var result *multierror.Error
				if pc.PushGatewayURL != "" {
					if err := prom.Push(ctx, pc.PushGatewayURL, pc.JobLabel); err != nil {
						result = multierror.Append(result, err)
					}
				}
				if pc.TextfilePath != "" {
					if err := prom.WriteTextfile(pc.TextfilePath); err != nil {
						result = multierror.Append(result, err)
					} else {
						logger.Infof("Metrics: written to %s.", pc.TextfilePath)
					}
				}
				// Export failures must not turn a finished job into a failed shutdown.
				if err := result.ErrorOrNil(); err != nil {
					logger.Warnf("Metrics: export failed: %v", err)
				}
				return nil
			},
		})
		logger.Infof("Metrics: Prometheus recorder enabled.")
	}

	if mc.OTel.Enabled {
		provider, err := NewMeterProvider(context.Background(), mc.OTel)
		if err != nil {
			return nil, err
		}
		otelRecorder, err := NewOpenTelemetryRecorder(provider)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, otelRecorder)
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
		logger.Infof("Metrics: OpenTelemetry recorder enabled (endpoint %s, %s).", mc.OTel.Endpoint, mc.OTel.Protocol)
	}

	switch len(recorders) {
	case 0:
		return recorder, nil
	case 1:
		return recorders[0], nil
	default:
		return recorders, nil
	}
}

// DecorateTracer replaces the no-op tracer with an OpenTelemetry tracer when tracing is enabled.
func DecorateTracer(lc fx.Lifecycle, cfg *config.Config, tracer metrics.Tracer) (metrics.Tracer, error) {
	tc := cfg.Ecoroute.Infrastructure.Tracing
	if !tc.Enabled {
		return tracer, nil
	}
	provider, err := NewTracerProvider(context.Background(), tc)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(provider)
	lc.Append(fx.Hook{OnStop: provider.Shutdown})
	logger.Infof("Tracing: OpenTelemetry tracer enabled (endpoint %s, %s).", tc.Endpoint, tc.Protocol)
	return NewOpenTelemetryTracer(provider), nil
}

// Module decorates the core recorder and tracer with the configured backends.
var Module = fx.Options(
	fx.Decorate(DecorateRecorder),
	fx.Decorate(DecorateTracer),
)
