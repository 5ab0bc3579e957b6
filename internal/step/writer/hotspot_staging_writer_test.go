package writer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/step"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

func staged(t *testing.T, ec model.ExecutionContext) []engine.HotspotRecord {
	t.Helper()
	records, ok := model.Lookup[[]engine.HotspotRecord](ec, step.KeyHotspots)
	require.True(t, ok)
	return records
}

func TestHotspotStagingWriter_AccumulatesChunks(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()
	w := NewHotspotStagingWriter()
	require.NoError(t, w.Open(ctx, ec))
	assert.Empty(t, staged(t, ec), "an empty run still stages an empty list")

	require.NoError(t, w.Write(ctx, []any{engine.HotspotRecord{Serial: "BB-1"}, &engine.HotspotRecord{Serial: "BB-2"}}))
	require.NoError(t, w.Write(ctx, []any{engine.HotspotRecord{Serial: "BB-3"}}))
	require.NoError(t, w.Close(ctx))

	records := staged(t, ec)
	require.Len(t, records, 3)
	assert.Equal(t, "BB-3", records[2].Serial)
	assert.Len(t, w.Records(), 3)
}

func TestHotspotStagingWriter_StagedSliceIsNotAliased(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()
	w := NewHotspotStagingWriter()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []any{engine.HotspotRecord{Serial: "BB-1"}}))
	first := staged(t, ec)

	require.NoError(t, w.Write(ctx, []any{engine.HotspotRecord{Serial: "BB-2"}}))
	assert.Len(t, first, 1)
	assert.Len(t, staged(t, ec), 2)
}

func TestHotspotStagingWriter_RestoresOnReopen(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()
	ec.Put(step.KeyHotspots, []engine.HotspotRecord{{Serial: "BB-1"}})

	w := NewHotspotStagingWriter()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []any{engine.HotspotRecord{Serial: "BB-2"}}))
	assert.Len(t, staged(t, ec), 2)
}

func TestHotspotStagingWriter_RejectsUnexpectedItems(t *testing.T) {
	w := NewHotspotStagingWriter()
	require.NoError(t, w.Open(context.Background(), model.NewExecutionContext()))
	assert.Error(t, w.Write(context.Background(), []any{"BB-1"}))
}
