package engine

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ScoringConfig holds the tuning constants of the hotspot score and the placement thresholds.
// The defaults were calibrated on a fleet with median days-to-fill of about 3.5 and p75 of 6.4.
type ScoringConfig struct {
	// MaxDays is the log-scale normalization ceiling for days-to-fill.
	MaxDays float64 `yaml:"max_days"`
	// DayWeight and FillWeight weight the day and fill sub-scores of one stream.
	DayWeight  float64 `yaml:"day_weight"`
	FillWeight float64 `yaml:"fill_weight"`
	// HotBelowDays marks a bin hot when its fastest stream fills strictly faster than this.
	HotBelowDays float64 `yaml:"hot_below_days"`
	// ColdAboveDays marks a bin cold when its fastest stream fills strictly slower than this.
	ColdAboveDays float64 `yaml:"cold_above_days"`
	// NeutralScore is used when no stream has both days-to-fill and fill percent.
	NeutralScore float64 `yaml:"neutral_score"`
}

// DefaultScoringConfig returns the calibrated defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxDays:       160,
		DayWeight:     0.65,
		FillWeight:    0.35,
		HotBelowDays:  3,
		ColdAboveDays: 20,
		NeutralScore:  50,
	}
}

// Validate rejects configurations that would break the score range or the taxonomy.
func (c ScoringConfig) Validate() error {
	if c.MaxDays <= 0 {
		return fmt.Errorf("max_days must be positive, got %v", c.MaxDays)
	}
	if c.DayWeight < 0 || c.FillWeight < 0 {
		return fmt.Errorf("weights must not be negative (day=%v, fill=%v)", c.DayWeight, c.FillWeight)
	}
	if c.DayWeight+c.FillWeight == 0 {
		return fmt.Errorf("at least one weight must be non-zero")
	}
	if c.HotBelowDays >= c.ColdAboveDays {
		return fmt.Errorf("hot_below_days (%v) must be below cold_above_days (%v)", c.HotBelowDays, c.ColdAboveDays)
	}
	if c.NeutralScore < 0 || c.NeutralScore > 100 {
		return fmt.Errorf("neutral_score must be within [0,100], got %v", c.NeutralScore)
	}
	return nil
}

// HotspotScorer computes the 0-100 urgency score and the placement status of a fused bin.
type HotspotScorer struct {
	cfg ScoringConfig
}

// NewHotspotScorer creates a HotspotScorer.
func NewHotspotScorer(cfg ScoringConfig) *HotspotScorer {
	return &HotspotScorer{cfg: cfg}
}

// StreamScore returns the sub-score of one stream, and false when days-to-fill or fill percent is
// absent. Negative days are malformed and count as absent.
func (s *HotspotScorer) StreamScore(m *StreamMetrics) (float64, bool) {
	if m == nil || m.DaysToFill == nil || m.FillPercent == nil {
		return 0, false
	}
	days, fill := *m.DaysToFill, *m.FillPercent
	if !validDays(days) || math.IsNaN(fill) || math.IsInf(fill, 0) {
		return 0, false
	}

	dayScore := 100 - math.Log1p(days)/math.Log1p(s.cfg.MaxDays)*100
	dayScore = clamp(dayScore, 0, 100)
	fillScore := math.Min(100, fill)

	return s.cfg.DayWeight*dayScore + s.cfg.FillWeight*fillScore, true
}

// Score returns the hotspot score and placement status of f.
func (s *HotspotScorer) Score(f FusedBinMetrics) (float64, PlacementStatus) {
	var sum float64
	var n int
	for _, m := range []*StreamMetrics{f.Waste, f.Recycle} {
		if v, ok := s.StreamScore(m); ok {
			sum += v
			n++
		}
	}

	var score float64
	if n == 0 {
		score = s.unscoredFallback()
	} else {
		score = sum / float64(n)
	}
	return clamp(RoundOneDecimal(score), 0, 100), s.Classify(f)
}

// unscoredFallback is the score of a bin without a complete (days, fill) pair on either stream.
func (s *HotspotScorer) unscoredFallback() float64 {
	return s.cfg.NeutralScore
}

// Classify places f by its fastest-filling stream. A missing days-to-fill counts as infinite, so a
// bin without timing data on either stream is good. Both thresholds are strict.
func (s *HotspotScorer) Classify(f FusedBinMetrics) PlacementStatus {
	daysMin := math.Min(daysOrInf(f.Waste), daysOrInf(f.Recycle))
	switch {
	case math.IsInf(daysMin, 1):
		return StatusGood
	case daysMin < s.cfg.HotBelowDays:
		return StatusHot
	case daysMin > s.cfg.ColdAboveDays:
		return StatusCold
	default:
		return StatusGood
	}
}

func daysOrInf(m *StreamMetrics) float64 {
	if m == nil || m.DaysToFill == nil || !validDays(*m.DaysToFill) {
		return math.Inf(1)
	}
	return *m.DaysToFill
}

func validDays(days float64) bool {
	return days >= 0 && !math.IsNaN(days) && !math.IsInf(days, 0)
}

// RoundOneDecimal rounds half away from zero to one decimal place.
func RoundOneDecimal(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// CeilOneDecimal rounds toward positive infinity to one decimal place.
func CeilOneDecimal(v float64) float64 {
	return decimal.NewFromFloat(v).RoundCeil(1).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
