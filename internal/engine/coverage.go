package engine

import (
	"fmt"
	"math"
	"sort"
)

// EarthRadiusMeters is the mean Earth radius used by HaversineMeters.
const EarthRadiusMeters = 6371000.0

// CoverageConfig configures the CoverageGapDetector.
type CoverageConfig struct {
	RadiusMeters float64 `yaml:"radius_meters"`
}

// DefaultCoverageConfig returns an 80 m coverage radius.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{RadiusMeters: 80}
}

// Validate rejects a non-positive radius.
func (c CoverageConfig) Validate() error {
	if c.RadiusMeters <= 0 {
		return fmt.Errorf("radius_meters must be positive, got %v", c.RadiusMeters)
	}
	return nil
}

// Coordinate is a resolved bin position.
type Coordinate struct {
	Lat float64
	Lng float64
}

// HaversineMeters returns the great-circle distance in meters between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// AnchorCatalog is the static per-campus list of high-traffic anchor points.
type AnchorCatalog map[Campus][]AnchorPoint

// Campuses returns the catalog's campuses in lexical order.
func (c AnchorCatalog) Campuses() []Campus {
	return SortedCampuses(c)
}

// SortedCampuses returns the keys of a campus-keyed map in lexical order.
func SortedCampuses[V any](m map[Campus]V) []Campus {
	out := make([]Campus, 0, len(m))
	for campus := range m {
		out = append(out, campus)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the total number of anchors.
func (c AnchorCatalog) Len() int {
	n := 0
	for _, anchors := range c {
		n += len(anchors)
	}
	return n
}

// CoverageGapDetector flags anchors with no existing bin within the coverage radius.
// It scans anchors x bins per campus, which is fine for catalogs of tens of entries; a spatial
// index can replace the scan without changing Detect.
type CoverageGapDetector struct {
	radius float64
}

// NewCoverageGapDetector creates a CoverageGapDetector with the radius of cfg as given.
// Callers check cfg with Validate first.
func NewCoverageGapDetector(cfg CoverageConfig) *CoverageGapDetector {
	return &CoverageGapDetector{radius: cfg.RadiusMeters}
}

// Detect returns the anchors of one campus whose nearest bin is farther than the radius, in
// catalog order. Every anchor is suggested when the campus has no bins. NearestBinMeters is
// rounded up, so a suggested site never reports a distance at or inside the radius.
func (d *CoverageGapDetector) Detect(campus Campus, anchors []AnchorPoint, bins []Coordinate) []SuggestedSite {
	var out []SuggestedSite
	for _, anchor := range anchors {
		nearest, found := nearestDistance(anchor, bins)
		if found && nearest <= d.radius {
			continue
		}
		site := SuggestedSite{
			AnchorPoint:     anchor,
			Campus:          campus,
			PlacementStatus: StatusSuggested,
		}
		if found {
			site.NearestBinMeters = Float(CeilOneDecimal(nearest))
		}
		out = append(out, site)
	}
	return out
}

func nearestDistance(anchor AnchorPoint, bins []Coordinate) (float64, bool) {
	if len(bins) == 0 {
		return 0, false
	}
	best := math.Inf(1)
	for _, b := range bins {
		if d := HaversineMeters(anchor.Lat, anchor.Lng, b.Lat, b.Lng); d < best {
			best = d
		}
	}
	return best, true
}
