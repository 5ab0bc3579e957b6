package engine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
)

func stream(days, fill *float64) *engine.StreamMetrics {
	return &engine.StreamMetrics{DaysToFill: days, FillPercent: fill}
}

func TestHotspotScorer_WorkedScenario(t *testing.T) {
	scorer := engine.NewHotspotScorer(engine.DefaultScoringConfig())
	bin := engine.FusedBinMetrics{
		Serial:  "BB-1",
		Waste:   stream(f(2), f(90)),
		Recycle: stream(f(25), f(20)),
	}

	waste, ok := scorer.StreamScore(bin.Waste)
	require.True(t, ok)
	expectedWaste := 0.65*(100-math.Log(3)/math.Log(161)*100) + 0.35*90
	assert.InDelta(t, expectedWaste, waste, 1e-9)
	assert.InDelta(t, 82.4, waste, 0.05)

	recycle, ok := scorer.StreamScore(bin.Recycle)
	require.True(t, ok)
	assert.InDelta(t, 30.3, recycle, 0.05)

	score, status := scorer.Score(bin)
	assert.Equal(t, 56.4, score)
	assert.Equal(t, engine.StatusHot, status)
}

func TestHotspotScorer_NeutralFallbackWithoutCompletePairs(t *testing.T) {
	scorer := engine.NewHotspotScorer(engine.DefaultScoringConfig())

	bins := []engine.FusedBinMetrics{
		{Waste: stream(nil, f(90))},
		{Recycle: stream(f(4), nil)},
		{Waste: stream(nil, f(10)), Recycle: stream(nil, f(99))},
		{Waste: &engine.StreamMetrics{DaysTo80: f(1)}},
	}
	for _, bin := range bins {
		score, status := scorer.Score(bin)
		assert.Equal(t, 50.0, score)
		assert.Equal(t, engine.StatusGood, status)
	}
}

func TestHotspotScorer_NeutralScoreIsConfigurable(t *testing.T) {
	cfg := engine.DefaultScoringConfig()
	cfg.NeutralScore = 0
	score, _ := engine.NewHotspotScorer(cfg).Score(engine.FusedBinMetrics{Waste: stream(nil, f(80))})
	assert.Equal(t, 0.0, score)
}

func TestHotspotScorer_SingleStreamIsNotAveragedWithMissingOne(t *testing.T) {
	scorer := engine.NewHotspotScorer(engine.DefaultScoringConfig())
	only, _ := scorer.StreamScore(stream(f(5), f(60)))

	score, _ := scorer.Score(engine.FusedBinMetrics{Waste: stream(f(5), f(60)), Recycle: stream(nil, f(10))})
	assert.Equal(t, engine.RoundOneDecimal(only), score)
}

func TestHotspotScorer_ScoreAlwaysWithinRange(t *testing.T) {
	scorer := engine.NewHotspotScorer(engine.DefaultScoringConfig())
	days := []float64{0, 0.01, 0.5, 1, 2.99, 3, 20, 159, 160, 161, 1000, 1e9}
	fills := []float64{-50, 0, 50, 100, 250}

	for _, d := range days {
		for _, fl := range fills {
			score, _ := scorer.Score(engine.FusedBinMetrics{Waste: stream(f(d), f(fl)), Recycle: stream(f(d), f(fl))})
			assert.GreaterOrEqual(t, score, 0.0, "days=%v fill=%v", d, fl)
			assert.LessOrEqual(t, score, 100.0, "days=%v fill=%v", d, fl)
		}
	}
}

func TestHotspotScorer_FasterFillingNeverScoresLower(t *testing.T) {
	scorer := engine.NewHotspotScorer(engine.DefaultScoringConfig())

	for _, fill := range []float64{0, 35, 80, 100} {
		prev := -1.0
		for days := 400.0; days >= 0; days -= 0.25 {
			score, _ := scorer.Score(engine.FusedBinMetrics{Waste: stream(f(days), f(fill))})
			assert.GreaterOrEqual(t, score, prev, "fill=%v days=%v", fill, days)
			prev = score
		}
	}
}

func TestHotspotScorer_ClassificationBoundaries(t *testing.T) {
	scorer := engine.NewHotspotScorer(engine.DefaultScoringConfig())

	tests := []struct {
		name    string
		waste   *float64
		recycle *float64
		want    engine.PlacementStatus
	}{
		{"exactly 3 days is good", f(3), nil, engine.StatusGood},
		{"just under 3 days is hot", f(2.999), nil, engine.StatusHot},
		{"exactly 20 days is good", nil, f(20), engine.StatusGood},
		{"just over 20 days is cold", nil, f(20.001), engine.StatusCold},
		{"fastest stream decides", f(25), f(2), engine.StatusHot},
		{"both slow is cold", f(25), f(30), engine.StatusCold},
		{"no timing data is good", nil, nil, engine.StatusGood},
		{"negative days is treated as missing", f(-1), nil, engine.StatusGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := engine.FusedBinMetrics{
				Waste:   stream(tt.waste, f(50)),
				Recycle: stream(tt.recycle, f(50)),
			}
			assert.Equal(t, tt.want, scorer.Classify(bin))
		})
	}
}

func TestHotspotScorer_ThresholdsAreConfigurable(t *testing.T) {
	cfg := engine.DefaultScoringConfig()
	cfg.HotBelowDays = 5
	cfg.ColdAboveDays = 10
	scorer := engine.NewHotspotScorer(cfg)

	assert.Equal(t, engine.StatusHot, scorer.Classify(engine.FusedBinMetrics{Waste: stream(f(4), nil)}))
	assert.Equal(t, engine.StatusCold, scorer.Classify(engine.FusedBinMetrics{Waste: stream(f(11), nil)}))
}

func TestScoringConfig_Validate(t *testing.T) {
	assert.NoError(t, engine.DefaultScoringConfig().Validate())

	broken := []func(c *engine.ScoringConfig){
		func(c *engine.ScoringConfig) { c.MaxDays = 0 },
		func(c *engine.ScoringConfig) { c.DayWeight = -0.1 },
		func(c *engine.ScoringConfig) { c.DayWeight, c.FillWeight = 0, 0 },
		func(c *engine.ScoringConfig) { c.HotBelowDays = 20 },
		func(c *engine.ScoringConfig) { c.NeutralScore = 101 },
	}
	for i, mutate := range broken {
		cfg := engine.DefaultScoringConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}

func TestRoundOneDecimal(t *testing.T) {
	assert.Equal(t, 56.4, engine.RoundOneDecimal(56.38505820494869))
	assert.Equal(t, 0.1, engine.RoundOneDecimal(0.05))
	assert.Equal(t, 100.0, engine.RoundOneDecimal(99.96))
}

func TestCeilOneDecimal(t *testing.T) {
	assert.Equal(t, 80.1, engine.CeilOneDecimal(80.04))
	assert.Equal(t, 80.0, engine.CeilOneDecimal(80.0))
	assert.Equal(t, 1041.2, engine.CeilOneDecimal(1041.2))
	assert.Equal(t, 0.1, engine.CeilOneDecimal(0.01))
}
