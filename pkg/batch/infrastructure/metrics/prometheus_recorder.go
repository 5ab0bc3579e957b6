package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

const namespace = "ecoroute"

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// A batch process is short lived, so metrics leave the process by Pushgateway push or by a
// textfile for the node_exporter textfile collector rather than by scraping.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Step Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepReadCount       *prometheus.CounterVec
	stepProcessCount    *prometheus.CounterVec
	stepWriteCount      *prometheus.CounterVec
	stepCommitCount     *prometheus.CounterVec

	mu        sync.Mutex
	durations map[string]*prometheus.HistogramVec
	gauges    map[string]*prometheus.GaugeVec
	rejected  map[string]bool
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of batch job executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_status_total",
			Help:      "Total number of batch job executions by status.",
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of batch step executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_status_total",
			Help:      "Total number of batch step executions by status.",
		}, []string{"job_name", "step_name", "status"}),
		stepReadCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_read_total",
			Help:      "Total items read by step.",
		}, []string{"job_name", "step_name"}),
		stepProcessCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_process_total",
			Help:      "Total items processed (not filtered) by step.",
		}, []string{"job_name", "step_name"}),
		stepWriteCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_write_total",
			Help:      "Total items written by step.",
		}, []string{"job_name", "step_name"}),
		stepCommitCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_commit_total",
			Help:      "Total chunk commits by step.",
		}, []string{"job_name", "step_name"}),
		durations: make(map[string]*prometheus.HistogramVec),
		gauges:    make(map[string]*prometheus.GaugeVec),
		rejected:  make(map[string]bool),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.stepReadCount,
		r.stepProcessCount,
		r.stepWriteCount,
		r.stepCommitCount,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String()).Inc()
}

func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String()).Inc()
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(execution.JobName, execution.Status.String(), execution.ExitStatus.String()).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepStatusCounter.WithLabelValues(jobNameOf(execution), execution.StepName, execution.Status.String()).Inc()
}

func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := jobNameOf(execution)
	r.stepStatusCounter.WithLabelValues(jobName, execution.StepName, execution.Status.String()).Inc()
	if execution.EndTime == nil {
		return
	}
	r.stepDurationSeconds.WithLabelValues(jobName, execution.StepName, execution.Status.String(), execution.ExitStatus.String()).
		Observe(execution.EndTime.Sub(execution.StartTime).Seconds())
}

func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.stepReadCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

func (r *PrometheusRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.stepProcessCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.stepWriteCount.WithLabelValues(jobNameFromContext(ctx), stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.stepCommitCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordDuration observes duration on the histogram ecoroute_<name>_duration_seconds, labelled by tags.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	keys, values := splitTags(tags)
	metricName := sanitize(name) + "_duration_seconds"

	r.mu.Lock()
	vec, ok := r.durations[metricName]
	if !ok && !r.rejected[metricName] {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      metricName,
			Help:      fmt.Sprintf("Duration of %s operations.", name),
			Buckets:   prometheus.DefBuckets,
		}, keys)
		if r.register(metricName, vec) {
			r.durations[metricName] = vec
			ok = true
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	observer, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		logger.Warnf("Metrics: dropping duration '%s': %v", name, err)
		return
	}
	observer.Observe(duration.Seconds())
}

// RecordGauge sets the gauge ecoroute_<name>, labelled by tags.
func (r *PrometheusRecorder) RecordGauge(ctx context.Context, name string, value float64, tags map[string]string) {
	keys, values := splitTags(tags)
	metricName := sanitize(name)

	r.mu.Lock()
	vec, ok := r.gauges[metricName]
	if !ok && !r.rejected[metricName] {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      metricName,
			Help:      fmt.Sprintf("Last recorded value of %s.", name),
		}, keys)
		if r.register(metricName, vec) {
			r.gauges[metricName] = vec
			ok = true
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	gauge, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		logger.Warnf("Metrics: dropping gauge '%s': %v", name, err)
		return
	}
	gauge.Set(value)
}

// register registers c and remembers names that cannot be registered. Callers hold r.mu.
func (r *PrometheusRecorder) register(metricName string, c prometheus.Collector) bool {
	if err := r.registry.Register(c); err != nil {
		logger.Warnf("Metrics: cannot register '%s': %v", metricName, err)
		r.rejected[metricName] = true
		return false
	}
	return true
}

// Push sends all collected metrics to the Pushgateway at url under the given job label.
func (r *PrometheusRecorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	logger.Infof("Metrics: pushed to Pushgateway %s (job=%s).", url, job)
	return nil
}

// WriteTextfile writes all collected metrics to path in the text exposition format.
// The file is replaced atomically so the textfile collector never reads a partial file.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics textfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func jobNameOf(execution *model.StepExecution) string {
	if execution.JobExecution == nil {
		return ""
	}
	return execution.JobExecution.JobName
}

func jobNameFromContext(ctx context.Context) string {
	if se := port.GetStepExecutionFromContext(ctx); se != nil {
		return jobNameOf(se)
	}
	return ""
}

func splitTags(tags map[string]string) (keys, values []string) {
	keys = make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values = make([]string, len(keys))
	for i, k := range keys {
		values[i] = tags[k]
		keys[i] = sanitize(k)
	}
	return keys, values
}

func sanitize(name string) string {
	return strings.ToLower(invalidNameChars.ReplaceAllString(name, "_"))
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
