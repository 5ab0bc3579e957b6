package engine

import (
	"fmt"
	"math"
	"sort"
)

// SummaryConfig holds the thresholds of the campus summary and the ranked lists.
type SummaryConfig struct {
	CriticalFillPercent float64 `yaml:"critical_fill_percent"`
	UrgentDaysTo80      float64 `yaml:"urgent_days_to_80"`
	SoonDaysTo80        float64 `yaml:"soon_days_to_80"`
	TopN                int     `yaml:"top_n"`
}

// DefaultSummaryConfig returns critical at 85%, urgent within 2 days, soon within 5, top 10.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		CriticalFillPercent: 85,
		UrgentDaysTo80:      2,
		SoonDaysTo80:        5,
		TopN:                10,
	}
}

// Validate checks the bucket boundaries.
func (c SummaryConfig) Validate() error {
	if c.UrgentDaysTo80 > c.SoonDaysTo80 {
		return fmt.Errorf("urgent_days_to_80 (%v) must not exceed soon_days_to_80 (%v)", c.UrgentDaysTo80, c.SoonDaysTo80)
	}
	if c.TopN < 0 {
		return fmt.Errorf("top_n must not be negative, got %d", c.TopN)
	}
	return nil
}

// UrgencyBuckets counts bins of one stream by days until 80% full.
type UrgencyBuckets struct {
	Urgent  int `json:"urgent"`
	Soon    int `json:"soon"`
	OnTrack int `json:"on_track"`
}

func (b *UrgencyBuckets) add(daysTo80 *float64, cfg SummaryConfig) {
	if daysTo80 == nil {
		return
	}
	switch d := *daysTo80; {
	case d <= cfg.UrgentDaysTo80:
		b.Urgent++
	case d <= cfg.SoonDaysTo80:
		b.Soon++
	default:
		b.OnTrack++
	}
}

// CampusSummary aggregates the records of one campus, or of the whole fleet.
type CampusSummary struct {
	Campus         Campus         `json:"campus"`
	Total          int            `json:"total"`
	Resolved       int            `json:"resolved"`
	AvgWasteFill   *float64       `json:"avg_waste_fill"`
	AvgRecycleFill *float64       `json:"avg_recycle_fill"`
	Critical       int            `json:"critical"`
	Hot            int            `json:"hot"`
	Good           int            `json:"good"`
	Cold           int            `json:"cold"`
	Suggested      int            `json:"suggested"`
	Waste          UrgencyBuckets `json:"waste"`
	Recycle        UrgencyBuckets `json:"recycle"`
}

// Summary is the fleet-wide aggregate plus one entry per resolved campus, ordered by campus.
type Summary struct {
	Overall  CampusSummary   `json:"overall"`
	Campuses []CampusSummary `json:"campuses"`
}

type avgAcc struct {
	sum float64
	n   int
}

func (a *avgAcc) add(v *float64) {
	if v != nil {
		a.sum += *v
		a.n++
	}
}

func (a avgAcc) value() *float64 {
	if a.n == 0 {
		return nil
	}
	return Float(RoundOneDecimal(a.sum / float64(a.n)))
}

type summaryBuilder struct {
	s              CampusSummary
	waste, recycle avgAcc
}

func (b *summaryBuilder) add(r HotspotRecord, cfg SummaryConfig) {
	b.s.Total++
	if r.Resolved() {
		b.s.Resolved++
	}
	b.waste.add(r.WasteFillPercent)
	b.recycle.add(r.RecycleFillPercent)
	if isCritical(r, cfg.CriticalFillPercent) {
		b.s.Critical++
	}
	switch r.PlacementStatus {
	case StatusHot:
		b.s.Hot++
	case StatusCold:
		b.s.Cold++
	default:
		b.s.Good++
	}
	b.s.Waste.add(r.WasteDaysTo80, cfg)
	b.s.Recycle.add(r.RecycleDaysTo80, cfg)
}

func (b *summaryBuilder) build() CampusSummary {
	b.s.AvgWasteFill = b.waste.value()
	b.s.AvgRecycleFill = b.recycle.value()
	return b.s
}

// Summarize aggregates records and suggested sites per campus and overall. Records with an
// unresolved campus count only toward the overall summary.
func Summarize(records []HotspotRecord, suggested map[Campus][]SuggestedSite, cfg SummaryConfig) Summary {
	overall := &summaryBuilder{}
	perCampus := make(map[Campus]*summaryBuilder)
	get := func(c Campus) *summaryBuilder {
		b, ok := perCampus[c]
		if !ok {
			b = &summaryBuilder{s: CampusSummary{Campus: c}}
			perCampus[c] = b
		}
		return b
	}

	for _, r := range records {
		overall.add(r, cfg)
		if r.Campus != CampusUnresolved {
			get(r.Campus).add(r, cfg)
		}
	}
	for campus, sites := range suggested {
		overall.s.Suggested += len(sites)
		get(campus).s.Suggested += len(sites)
	}

	campuses := SortedCampuses(perCampus)
	out := Summary{Overall: overall.build(), Campuses: make([]CampusSummary, 0, len(campuses))}
	for _, c := range campuses {
		out.Campuses = append(out.Campuses, perCampus[c].build())
	}
	return out
}

func isCritical(r HotspotRecord, threshold float64) bool {
	return (r.WasteFillPercent != nil && *r.WasteFillPercent >= threshold) ||
		(r.RecycleFillPercent != nil && *r.RecycleFillPercent >= threshold)
}

func maxFill(r HotspotRecord) float64 {
	m := math.Inf(-1)
	for _, v := range []*float64{r.WasteFillPercent, r.RecycleFillPercent} {
		if v != nil && *v > m {
			m = *v
		}
	}
	return m
}

// Critical returns the records with either stream at or above threshold percent full, fullest first.
func Critical(records []HotspotRecord, threshold float64) []HotspotRecord {
	var out []HotspotRecord
	for _, r := range records {
		if isCritical(r, threshold) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := maxFill(out[i]), maxFill(out[j])
		if mi != mj {
			return mi > mj
		}
		return out[i].Serial < out[j].Serial
	})
	return out
}

// FilterByCampus returns the records of campus. An empty campus returns every record.
func FilterByCampus(records []HotspotRecord, campus Campus) []HotspotRecord {
	if campus == CampusUnresolved {
		return records
	}
	var out []HotspotRecord
	for _, r := range records {
		if r.Campus == campus {
			out = append(out, r)
		}
	}
	return out
}

// SortKey selects the field a ranked list is ordered by.
type SortKey string

const (
	// SortHotspotScore ranks by score, highest first.
	SortHotspotScore SortKey = "hotspot_score"
	// SortWasteDaysToFill ranks the busiest bins, fastest-filling first.
	SortWasteDaysToFill SortKey = "waste_days_to_fill"
	// SortWasteDaysTo80 ranks the most overdue trash collections first.
	SortWasteDaysTo80 SortKey = "waste_days_to_80"
	// SortRecycleDaysTo80 ranks the most overdue recycle collections first.
	SortRecycleDaysTo80 SortKey = "recycle_days_to_80"
)

func (k SortKey) value(r HotspotRecord) *float64 {
	switch k {
	case SortHotspotScore:
		return Float(r.HotspotScore)
	case SortWasteDaysToFill:
		return r.WasteDaysToFill
	case SortWasteDaysTo80:
		return r.WasteDaysTo80
	case SortRecycleDaysTo80:
		return r.RecycleDaysTo80
	default:
		return nil
	}
}

// TopBy returns up to n resolved records ranked by key. Records without a value for key are
// excluded. A non-positive n returns every ranked record.
func TopBy(records []HotspotRecord, key SortKey, n int) []HotspotRecord {
	var out []HotspotRecord
	for _, r := range records {
		if r.Resolved() && key.value(r) != nil {
			out = append(out, r)
		}
	}
	descending := key == SortHotspotScore
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := *key.value(out[i]), *key.value(out[j])
		if vi != vj {
			if descending {
				return vi > vj
			}
			return vi < vj
		}
		return out[i].Serial < out[j].Serial
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
