package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
)

func sample(serial, desc string, stream engine.Stream, days, fill, to80 *float64) engine.RawStreamSample {
	return engine.RawStreamSample{
		Serial:            serial,
		Description:       desc,
		Stream:            stream,
		AvgDaysToFill:     days,
		AvgFillPercent:    fill,
		EstimatedDaysTo80: to80,
	}
}

func f(v float64) *float64 { return engine.Float(v) }

func TestStreamFuser_FusesBothStreamsPerSerial(t *testing.T) {
	fuser := engine.NewStreamFuser(engine.DefaultFusionConfig())

	fused := fuser.Fuse([]engine.RawStreamSample{
		sample("BB-1", "GSU Plaza", engine.StreamWaste, f(2), f(90), f(1)),
		sample("BB-1", "GSU Plaza", engine.StreamRecycle, f(25), f(20), f(12)),
		sample("BB-2", "Marsh Chapel", engine.StreamRecycle, f(6), f(40), nil),
	})

	require.Len(t, fused, 2)
	bin := fused["BB-1"]
	require.NotNil(t, bin.Waste)
	require.NotNil(t, bin.Recycle)
	assert.Equal(t, "GSU Plaza", bin.Description)
	assert.Equal(t, 2.0, *bin.Waste.DaysToFill)
	assert.Equal(t, 20.0, *bin.Recycle.FillPercent)

	only := fused["BB-2"]
	assert.Nil(t, only.Waste)
	require.NotNil(t, only.Recycle)
	assert.Nil(t, only.Recycle.DaysTo80)
}

// Duplicate (serial, stream) rows are resolved by keeping the last row. Nothing is averaged, so
// earlier values for the pair are lost.
func TestStreamFuser_DuplicatePairLastWriteWins(t *testing.T) {
	fuser := engine.NewStreamFuser(engine.FusionConfig{})

	fused := fuser.Fuse([]engine.RawStreamSample{
		sample("BB-1", "GSU Plaza", engine.StreamWaste, f(2), f(90), f(1)),
		sample("BB-1", "GSU Plaza", engine.StreamWaste, f(10), nil, f(7)),
	})

	bin := fused["BB-1"]
	require.NotNil(t, bin.Waste)
	assert.Equal(t, 10.0, *bin.Waste.DaysToFill)
	assert.Nil(t, bin.Waste.FillPercent, "the earlier fill value must not survive")
	assert.Equal(t, 7.0, *bin.Waste.DaysTo80)
}

func TestStreamFuser_DuplicatePairAveragePolicy(t *testing.T) {
	fuser := engine.NewStreamFuser(engine.FusionConfig{DuplicatePolicy: engine.DuplicateAverage})

	fused := fuser.Fuse([]engine.RawStreamSample{
		sample("BB-1", "GSU Plaza", engine.StreamWaste, f(2), f(90), nil),
		sample("BB-1", "GSU Plaza", engine.StreamWaste, f(4), nil, f(3)),
	})

	bin := fused["BB-1"]
	require.NotNil(t, bin.Waste)
	assert.Equal(t, 3.0, *bin.Waste.DaysToFill)
	assert.Equal(t, 90.0, *bin.Waste.FillPercent)
	assert.Equal(t, 3.0, *bin.Waste.DaysTo80)
}

func TestStreamFuser_DropsBinsWithoutStreamData(t *testing.T) {
	fuser := engine.NewStreamFuser(engine.DefaultFusionConfig())

	fused := fuser.Fuse([]engine.RawStreamSample{
		sample("BB-1", "GSU Plaza", engine.StreamWaste, nil, nil, nil),
		sample("  ", "No serial", engine.StreamWaste, f(1), f(1), f(1)),
		sample("BB-3", "Unknown stream", engine.Stream("compost"), f(1), f(1), f(1)),
		sample("BB-4", "Kept", engine.StreamWaste, nil, f(50), nil),
	})

	assert.Len(t, fused, 1)
	assert.Contains(t, fused, "BB-4")
	for _, bin := range fused {
		assert.True(t, bin.Valid())
	}
}

func TestStreamFuser_FuseOrderedSortsBySerial(t *testing.T) {
	fuser := engine.NewStreamFuser(engine.DefaultFusionConfig())

	out := fuser.FuseOrdered([]engine.RawStreamSample{
		sample("c", "", engine.StreamWaste, f(1), f(1), nil),
		sample("a", "", engine.StreamWaste, f(1), f(1), nil),
		sample("b", "", engine.StreamRecycle, f(1), f(1), nil),
	})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Serial, out[1].Serial, out[2].Serial})
}

func TestFusionConfig_Validate(t *testing.T) {
	assert.NoError(t, engine.DefaultFusionConfig().Validate())
	assert.NoError(t, engine.FusionConfig{DuplicatePolicy: engine.DuplicateAverage}.Validate())
	assert.Error(t, engine.FusionConfig{DuplicatePolicy: "first-wins"}.Validate())
}
