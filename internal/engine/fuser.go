package engine

import (
	"fmt"
	"sort"
	"strings"
)

// DuplicatePolicy decides what happens when a (serial, stream) pair appears more than once.
type DuplicatePolicy string

const (
	// DuplicateLastWriteWins keeps the values of the last row seen for the pair.
	DuplicateLastWriteWins DuplicatePolicy = "last-write-wins"
	// DuplicateAverage averages every present value per field across the duplicate rows.
	DuplicateAverage DuplicatePolicy = "average"
)

// FusionConfig configures the StreamFuser.
type FusionConfig struct {
	DuplicatePolicy DuplicatePolicy `yaml:"duplicate_policy"`
}

// DefaultFusionConfig returns last-write-wins fusion.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{DuplicatePolicy: DuplicateLastWriteWins}
}

// Validate checks that the duplicate policy is known.
func (c FusionConfig) Validate() error {
	switch c.DuplicatePolicy {
	case DuplicateLastWriteWins, DuplicateAverage:
		return nil
	default:
		return fmt.Errorf("unknown duplicate policy %q", c.DuplicatePolicy)
	}
}

// StreamFuser groups per-stream rows into one record per bin serial.
type StreamFuser struct {
	policy DuplicatePolicy
}

// NewStreamFuser creates a StreamFuser. An empty policy means last-write-wins.
func NewStreamFuser(cfg FusionConfig) *StreamFuser {
	policy := cfg.DuplicatePolicy
	if policy == "" {
		policy = DuplicateLastWriteWins
	}
	return &StreamFuser{policy: policy}
}

type pairKey struct {
	serial string
	stream Stream
}

// running sums for the average policy
type fieldSums struct {
	days, fill, to80    float64
	nDays, nFill, nTo80 int
}

func (s *fieldSums) add(sample RawStreamSample) {
	if sample.AvgDaysToFill != nil {
		s.days += *sample.AvgDaysToFill
		s.nDays++
	}
	if sample.AvgFillPercent != nil {
		s.fill += *sample.AvgFillPercent
		s.nFill++
	}
	if sample.EstimatedDaysTo80 != nil {
		s.to80 += *sample.EstimatedDaysTo80
		s.nTo80++
	}
}

func (s *fieldSums) metrics() *StreamMetrics {
	m := &StreamMetrics{}
	if s.nDays > 0 {
		m.DaysToFill = Float(s.days / float64(s.nDays))
	}
	if s.nFill > 0 {
		m.FillPercent = Float(s.fill / float64(s.nFill))
	}
	if s.nTo80 > 0 {
		m.DaysTo80 = Float(s.to80 / float64(s.nTo80))
	}
	return m
}

// Fuse returns one FusedBinMetrics per serial. Rows with a blank serial or an unknown stream
// are ignored, and bins left with no stream data are dropped.
func (f *StreamFuser) Fuse(samples []RawStreamSample) map[string]*FusedBinMetrics {
	fused := make(map[string]*FusedBinMetrics)
	sums := make(map[pairKey]*fieldSums)

	for _, sample := range samples {
		serial := strings.TrimSpace(sample.Serial)
		if serial == "" {
			continue
		}
		if sample.Stream != StreamWaste && sample.Stream != StreamRecycle {
			continue
		}

		bin, ok := fused[serial]
		if !ok {
			bin = &FusedBinMetrics{Serial: serial}
			fused[serial] = bin
		}
		if desc := strings.TrimSpace(sample.Description); desc != "" {
			bin.Description = desc
		}

		var metrics *StreamMetrics
		if f.policy == DuplicateAverage {
			key := pairKey{serial: serial, stream: sample.Stream}
			acc, ok := sums[key]
			if !ok {
				acc = &fieldSums{}
				sums[key] = acc
			}
			acc.add(sample)
			metrics = acc.metrics()
		} else {
			metrics = &StreamMetrics{
				DaysToFill:  copyFloat(sample.AvgDaysToFill),
				FillPercent: copyFloat(sample.AvgFillPercent),
				DaysTo80:    copyFloat(sample.EstimatedDaysTo80),
			}
		}

		if sample.Stream == StreamWaste {
			bin.Waste = metrics
		} else {
			bin.Recycle = metrics
		}
	}

	for serial, bin := range fused {
		if bin.Waste.IsEmpty() {
			bin.Waste = nil
		}
		if bin.Recycle.IsEmpty() {
			bin.Recycle = nil
		}
		if !bin.Valid() {
			delete(fused, serial)
		}
	}
	return fused
}

// FuseOrdered fuses samples and returns the records ordered by serial.
func (f *StreamFuser) FuseOrdered(samples []RawStreamSample) []FusedBinMetrics {
	fused := f.Fuse(samples)
	serials := make([]string, 0, len(fused))
	for serial := range fused {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	out := make([]FusedBinMetrics, 0, len(serials))
	for _, serial := range serials {
		out = append(out, *fused[serial])
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}
