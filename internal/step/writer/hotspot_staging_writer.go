// Package writer holds the item writers of the hotspot snapshot job.
package writer

import (
	"context"
	"fmt"

	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/step"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// HotspotStagingWriterName is the JSL reference of HotspotStagingWriter.
const HotspotStagingWriterName = "hotspotStagingWriter"

// HotspotStagingWriter collects the scored records of every chunk under step.KeyHotspots
// in the step execution context. Nothing is persisted here; the snapshot tables are only
// replaced once the whole snapshot is assembled.
type HotspotStagingWriter struct {
	records []engine.HotspotRecord
	ec      model.ExecutionContext
}

var _ port.ItemWriter[any] = (*HotspotStagingWriter)(nil)

// NewHotspotStagingWriter creates a HotspotStagingWriter.
func NewHotspotStagingWriter() *HotspotStagingWriter {
	return &HotspotStagingWriter{ec: model.NewExecutionContext()}
}

// Open restores records staged by an earlier attempt of the step, if any.
func (w *HotspotStagingWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		w.ec = ec
	}
	w.records = nil
	if staged, ok := model.Lookup[[]engine.HotspotRecord](w.ec, step.KeyHotspots); ok {
		w.records = append(w.records, staged...)
		logger.Infof("HotspotStagingWriter: restored %d staged records.", len(staged))
	}
	w.stage()
	return nil
}

// Write appends the chunk to the staged records.
func (w *HotspotStagingWriter) Write(ctx context.Context, items []any) error {
	for i, item := range items {
		switch v := item.(type) {
		case engine.HotspotRecord:
			w.records = append(w.records, v)
		case *engine.HotspotRecord:
			w.records = append(w.records, *v)
		default:
			return exception.NewBatchError(HotspotStagingWriterName, "unexpected item", fmt.Errorf("item %d is %T", i, item), false, false)
		}
	}
	w.stage()
	return nil
}

// stage publishes a copy so later appends never alias what the context holds.
func (w *HotspotStagingWriter) stage() {
	staged := make([]engine.HotspotRecord, len(w.records))
	copy(staged, w.records)
	w.ec.Put(step.KeyHotspots, staged)
}

// Close implements port.ItemWriter.
func (w *HotspotStagingWriter) Close(ctx context.Context) error {
	logger.Debugf("HotspotStagingWriter: %d records staged.", len(w.records))
	return nil
}

// Records returns the staged records.
func (w *HotspotStagingWriter) Records() []engine.HotspotRecord { return w.records }

// SetExecutionContext implements port.ItemWriter.
func (w *HotspotStagingWriter) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec
	return nil
}

// GetExecutionContext implements port.ItemWriter.
func (w *HotspotStagingWriter) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec, nil
}
