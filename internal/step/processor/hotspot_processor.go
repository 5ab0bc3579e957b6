// Package processor holds the item processors of the hotspot snapshot job.
package processor

import (
	"context"
	"fmt"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/step"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
)

// HotspotProcessorName is the JSL reference of HotspotProcessor.
const HotspotProcessorName = "hotspotProcessor"

// HotspotProcessor scores a fused bin and resolves its location, producing an
// engine.HotspotRecord. The reference data is taken from the job execution context
// when the step hands the processor its execution context.
type HotspotProcessor struct {
	opts      engine.Options
	assembler *engine.SnapshotAssembler
	ec        model.ExecutionContext
}

var _ port.ItemProcessor[any, any] = (*HotspotProcessor)(nil)

// NewHotspotProcessor creates a HotspotProcessor.
func NewHotspotProcessor(app *appconfig.AppConfig) *HotspotProcessor {
	return &HotspotProcessor{opts: app.Engine, ec: model.NewExecutionContext()}
}

// Process implements port.ItemProcessor. It accepts *engine.FusedBinMetrics or
// engine.FusedBinMetrics; bins without data on either stream are filtered.
func (p *HotspotProcessor) Process(ctx context.Context, item any) (any, error) {
	if p.assembler == nil {
		return nil, exception.NewBatchErrorf(HotspotProcessorName, "reference data was not loaded")
	}
	var bin engine.FusedBinMetrics
	switch v := item.(type) {
	case *engine.FusedBinMetrics:
		if v == nil {
			return nil, port.ErrFilterItem
		}
		bin = *v
	case engine.FusedBinMetrics:
		bin = v
	default:
		return nil, exception.NewBatchError(HotspotProcessorName, "unexpected item", fmt.Errorf("got %T", item), false, false)
	}
	if !bin.Valid() {
		return nil, port.ErrFilterItem
	}
	return p.assembler.BuildRecord(bin), nil
}

// SetExecutionContext implements port.ItemProcessor. ctx must carry the step execution,
// whose job context holds the reference data under step.KeyReference.
func (p *HotspotProcessor) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		p.ec = ec
	}
	se := port.GetStepExecutionFromContext(ctx)
	if se == nil {
		return exception.NewBatchErrorf(HotspotProcessorName, "no step execution in context")
	}
	ref, err := step.FromJob[engine.Reference](se, step.KeyReference)
	if err != nil {
		return exception.NewBatchError(HotspotProcessorName, "reference data unavailable", err, false, false)
	}
	p.assembler = engine.NewSnapshotAssembler(p.opts, ref)
	return nil
}

// GetExecutionContext implements port.ItemProcessor.
func (p *HotspotProcessor) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return p.ec, nil
}
