package tasklet

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/step"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// CoverageGapTaskletName is the JSL reference of CoverageGapTasklet.
const CoverageGapTaskletName = "coverageGapTasklet"

// Gauges set after gap detection, tagged with campus ("all" for the overall figure).
const (
	GaugeBins          = "snapshot_bins"
	GaugeResolvedBins  = "snapshot_resolved_bins"
	GaugeCriticalBins  = "snapshot_critical_bins"
	GaugeSuggestedSite = "snapshot_suggested_sites"
)

// CoverageGapConfig holds the JSL properties of CoverageGapTasklet.
type CoverageGapConfig struct {
	// Concurrency bounds the campuses evaluated at once. Zero means one per campus.
	Concurrency int `yaml:"concurrency"`
}

// CoverageGapTasklet suggests new sites for every campus of the anchor catalog, summarizes
// the staged records and leaves the complete engine.Snapshot under step.KeySnapshot.
type CoverageGapTasklet struct {
	props    CoverageGapConfig
	opts     engine.Options
	recorder metrics.MetricRecorder
	ec       model.ExecutionContext
}

var _ port.Tasklet = (*CoverageGapTasklet)(nil)

// NewCoverageGapTasklet creates a CoverageGapTasklet.
func NewCoverageGapTasklet(app *appconfig.AppConfig, recorder metrics.MetricRecorder, properties map[string]string) (*CoverageGapTasklet, error) {
	var props CoverageGapConfig
	if err := configbinder.BindProperties(properties, &props); err != nil {
		return nil, exception.NewBatchError(CoverageGapTaskletName, "invalid properties", err, false, false)
	}
	if props.Concurrency < 0 {
		return nil, exception.NewBatchErrorf(CoverageGapTaskletName, "concurrency must not be negative")
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &CoverageGapTasklet{
		props:    props,
		opts:     app.Engine,
		recorder: recorder,
		ec:       model.NewExecutionContext(),
	}, nil
}

// Execute implements port.Tasklet.
func (t *CoverageGapTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	ref, err := step.FromJob[engine.Reference](stepExecution, step.KeyReference)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(CoverageGapTaskletName, "reference data unavailable", err, false, false)
	}
	records, err := step.FromJob[[]engine.HotspotRecord](stepExecution, step.KeyHotspots)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(CoverageGapTaskletName, "staged hotspots unavailable", err, false, false)
	}

	assembler := engine.NewSnapshotAssembler(t.opts, ref)
	suggested, err := t.suggest(ctx, assembler, records)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	snap := engine.Snapshot{
		Hotspots:  records,
		Suggested: suggested,
		Summary:   engine.Summarize(records, suggested, t.opts.Summary),
	}
	t.ec.Put(step.KeySnapshot, snap)
	t.recordGauges(ctx, snap.Summary)

	o := snap.Summary.Overall
	logger.Infof("Coverage gaps: %d suggested sites; %d of %d bins resolved, %d critical.", o.Suggested, o.Resolved, o.Total, o.Critical)
	return model.ExitStatusCompleted, nil
}

// suggest runs gap detection for each campus on its own goroutine. Results are merged
// into a map keyed by campus, so the output does not depend on scheduling.
func (t *CoverageGapTasklet) suggest(ctx context.Context, a *engine.SnapshotAssembler, records []engine.HotspotRecord) (map[engine.Campus][]engine.SuggestedSite, error) {
	coords := engine.CampusCoordinates(records)
	anchors := a.Anchors()

	var mu sync.Mutex
	out := make(map[engine.Campus][]engine.SuggestedSite)

	g, gctx := errgroup.WithContext(ctx)
	if t.props.Concurrency > 0 {
		g.SetLimit(t.props.Concurrency)
	}
	for _, campus := range anchors.Campuses() {
		campus := campus
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sites := a.Detector().Detect(campus, anchors[campus], coords[campus])
			logger.Debugf("Coverage gaps: campus %s has %d of %d anchors uncovered.", campus, len(sites), len(anchors[campus]))
			if len(sites) == 0 {
				return nil
			}
			mu.Lock()
			out[campus] = sites
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, exception.NewBatchError(CoverageGapTaskletName, "coverage gap detection interrupted", err, false, false)
	}
	return out, nil
}

func (t *CoverageGapTasklet) recordGauges(ctx context.Context, s engine.Summary) {
	set := func(c engine.CampusSummary, campus string) {
		tags := map[string]string{"campus": campus}
		t.recorder.RecordGauge(ctx, GaugeBins, float64(c.Total), tags)
		t.recorder.RecordGauge(ctx, GaugeResolvedBins, float64(c.Resolved), tags)
		t.recorder.RecordGauge(ctx, GaugeCriticalBins, float64(c.Critical), tags)
		t.recorder.RecordGauge(ctx, GaugeSuggestedSite, float64(c.Suggested), tags)
	}
	set(s.Overall, "all")
	for _, c := range s.Campuses {
		set(c, string(c.Campus))
	}
}

// Close implements port.Tasklet.
func (t *CoverageGapTasklet) Close(ctx context.Context) error { return nil }

// SetExecutionContext implements port.Tasklet.
func (t *CoverageGapTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

// GetExecutionContext implements port.Tasklet.
func (t *CoverageGapTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
