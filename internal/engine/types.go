// Package engine fuses per-stream bin telemetry, resolves bin locations, scores collection
// urgency and detects coverage gaps. Everything in this package is a pure transform over
// in-memory inputs; reading files, talking to databases and publishing results belong to the
// batch steps that host it.
package engine

import "encoding/json"

// Stream identifies one of the two compartments of a physical bin.
type Stream string

const (
	StreamWaste   Stream = "waste"
	StreamRecycle Stream = "recycle"
)

// Campus is the deployment area a bin belongs to. The zero value means unresolved.
type Campus string

const (
	CampusUnresolved   Campus = ""
	CampusCharlesRiver Campus = "charles-river"
	CampusMedical      Campus = "medical"
	CampusFenway       Campus = "fenway"
)

// MarshalJSON encodes an unresolved campus as null.
func (c Campus) MarshalJSON() ([]byte, error) {
	if c == CampusUnresolved {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// PlacementStatus is the categorical health of a bin or a candidate site.
type PlacementStatus string

const (
	StatusHot       PlacementStatus = "hot"
	StatusGood      PlacementStatus = "good"
	StatusCold      PlacementStatus = "cold"
	StatusSuggested PlacementStatus = "suggested"
)

// RawStreamSample is one telemetry summary row for a single bin stream.
// Nil numeric fields are absent (missing or unparseable in the source).
type RawStreamSample struct {
	Serial            string
	Description       string
	Stream            Stream
	AvgDaysToFill     *float64
	AvgFillPercent    *float64
	EstimatedDaysTo80 *float64
}

// StreamMetrics holds the three numeric signals of one stream.
type StreamMetrics struct {
	DaysToFill  *float64
	FillPercent *float64
	DaysTo80    *float64
}

// IsEmpty reports whether no numeric value is present.
func (m *StreamMetrics) IsEmpty() bool {
	return m == nil || (m.DaysToFill == nil && m.FillPercent == nil && m.DaysTo80 == nil)
}

// FusedBinMetrics is the per-bin fusion of both streams.
type FusedBinMetrics struct {
	Serial      string
	Description string
	Waste       *StreamMetrics
	Recycle     *StreamMetrics
}

// Valid reports whether at least one stream carries data. Invalid records never reach scoring.
func (f FusedBinMetrics) Valid() bool {
	return !f.Waste.IsEmpty() || !f.Recycle.IsEmpty()
}

// GeoPoint is one entry of a geocode table.
type GeoPoint struct {
	Lat float64
	Lng float64
	Zip string
}

// ResolvedLocation is the outcome of resolving a bin description.
// Lat and Lng are nil when the description matched neither table.
type ResolvedLocation struct {
	Lat    *float64
	Lng    *float64
	Zip    string
	Campus Campus
}

// Resolved reports whether coordinates were found.
func (l ResolvedLocation) Resolved() bool {
	return l.Lat != nil && l.Lng != nil
}

// HotspotRecord is the terminal per-bin row of the analytics snapshot.
type HotspotRecord struct {
	Serial             string          `json:"serial"`
	Description        string          `json:"description"`
	Lat                *float64        `json:"lat"`
	Lng                *float64        `json:"lng"`
	Zip                string          `json:"zip"`
	Campus             Campus          `json:"campus"`
	WasteDaysToFill    *float64        `json:"waste_days_to_fill"`
	WasteFillPercent   *float64        `json:"waste_fill_percent"`
	WasteDaysTo80      *float64        `json:"waste_days_to_80"`
	RecycleDaysToFill  *float64        `json:"recycle_days_to_fill"`
	RecycleFillPercent *float64        `json:"recycle_fill_percent"`
	RecycleDaysTo80    *float64        `json:"recycle_days_to_80"`
	HotspotScore       float64         `json:"hotspot_score"`
	PlacementStatus    PlacementStatus `json:"placement_status"`
}

// Resolved reports whether the record carries map coordinates.
func (r HotspotRecord) Resolved() bool {
	return r.Lat != nil && r.Lng != nil
}

// AnchorPoint is a high-traffic location from the static per-campus catalog.
type AnchorPoint struct {
	Name   string  `json:"name" yaml:"name"`
	Lat    float64 `json:"lat" yaml:"lat"`
	Lng    float64 `json:"lng" yaml:"lng"`
	Reason string  `json:"reason" yaml:"reason"`
}

// SuggestedSite is an anchor with no existing bin inside the coverage radius.
// NearestBinMeters is nil when the campus has no resolved bins at all.
type SuggestedSite struct {
	AnchorPoint
	Campus           Campus          `json:"campus"`
	PlacementStatus  PlacementStatus `json:"placement_status"`
	NearestBinMeters *float64        `json:"nearest_bin_meters"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
