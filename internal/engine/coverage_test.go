package engine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
)

// degreesNorth converts a northward distance in meters to a latitude offset.
func degreesNorth(meters float64) float64 {
	return meters / engine.EarthRadiusMeters * 180 / math.Pi
}

var chapel = engine.AnchorPoint{Name: "Marsh Chapel", Lat: 42.3496, Lng: -71.1003, Reason: "chapel plaza"}

func TestHaversineMeters(t *testing.T) {
	assert.Equal(t, 0.0, engine.HaversineMeters(42.35, -71.1, 42.35, -71.1))
	assert.InDelta(t, 81.0, engine.HaversineMeters(42.35, -71.1, 42.35+degreesNorth(81), -71.1), 1e-6)

	// GSU Plaza to Marsh Chapel, roughly 430 m apart along Commonwealth Ave.
	d := engine.HaversineMeters(42.3505, -71.1054, 42.3496, -71.1003)
	assert.InDelta(t, 430, d, 15)
	assert.InDelta(t, d, engine.HaversineMeters(42.3496, -71.1003, 42.3505, -71.1054), 1e-9)
}

func TestCoverageGapDetector_RadiusBoundaries(t *testing.T) {
	detector := engine.NewCoverageGapDetector(engine.CoverageConfig{RadiusMeters: 80})

	tests := []struct {
		name      string
		offset    float64
		suggested bool
	}{
		{"bin on the anchor", 0, false},
		{"bin 79 m away", 79, false},
		{"bin 81 m away", 81, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bins := []engine.Coordinate{{Lat: chapel.Lat + degreesNorth(tt.offset), Lng: chapel.Lng}}
			sites := detector.Detect(engine.CampusCharlesRiver, []engine.AnchorPoint{chapel}, bins)
			if !tt.suggested {
				assert.Empty(t, sites)
				return
			}
			require.Len(t, sites, 1)
			assert.Equal(t, engine.StatusSuggested, sites[0].PlacementStatus)
			assert.Equal(t, engine.CampusCharlesRiver, sites[0].Campus)
			assert.Equal(t, "Marsh Chapel", sites[0].Name)
			require.NotNil(t, sites[0].NearestBinMeters)
			assert.GreaterOrEqual(t, *sites[0].NearestBinMeters, 81.0)
			assert.LessOrEqual(t, *sites[0].NearestBinMeters, 81.1)
		})
	}
}

func TestCoverageGapDetector_UsesNearestBin(t *testing.T) {
	detector := engine.NewCoverageGapDetector(engine.DefaultCoverageConfig())
	bins := []engine.Coordinate{
		{Lat: chapel.Lat + degreesNorth(500), Lng: chapel.Lng},
		{Lat: chapel.Lat - degreesNorth(40), Lng: chapel.Lng},
	}
	assert.Empty(t, detector.Detect(engine.CampusCharlesRiver, []engine.AnchorPoint{chapel}, bins))
}

func TestCoverageGapDetector_CampusWithoutBinsSuggestsEveryAnchor(t *testing.T) {
	detector := engine.NewCoverageGapDetector(engine.DefaultCoverageConfig())
	anchors := []engine.AnchorPoint{
		{Name: "L-Building Entry", Lat: 42.3356, Lng: -71.0723},
		{Name: "BUSM Courtyard", Lat: 42.3362, Lng: -71.0731},
	}

	sites := detector.Detect(engine.CampusMedical, anchors, nil)

	require.Len(t, sites, 2)
	assert.Equal(t, "L-Building Entry", sites[0].Name)
	assert.Equal(t, "BUSM Courtyard", sites[1].Name)
	assert.Nil(t, sites[0].NearestBinMeters)
}

func TestCoverageGapDetector_NearestDistanceRoundsUp(t *testing.T) {
	detector := engine.NewCoverageGapDetector(engine.CoverageConfig{RadiusMeters: 80})
	bins := []engine.Coordinate{{Lat: chapel.Lat + degreesNorth(80.04), Lng: chapel.Lng}}

	sites := detector.Detect(engine.CampusCharlesRiver, []engine.AnchorPoint{chapel}, bins)

	require.Len(t, sites, 1)
	require.NotNil(t, sites[0].NearestBinMeters)
	assert.Equal(t, 80.1, *sites[0].NearestBinMeters)
}

func TestCoverageGapDetector_RadiusIsUsedAsGiven(t *testing.T) {
	require.Error(t, engine.CoverageConfig{}.Validate())

	// A zero radius is not replaced by the default: only a bin on the anchor covers it.
	detector := engine.NewCoverageGapDetector(engine.CoverageConfig{})
	near := []engine.Coordinate{{Lat: chapel.Lat + degreesNorth(79), Lng: chapel.Lng}}
	assert.Len(t, detector.Detect(engine.CampusCharlesRiver, []engine.AnchorPoint{chapel}, near), 1)

	onAnchor := []engine.Coordinate{{Lat: chapel.Lat, Lng: chapel.Lng}}
	assert.Empty(t, detector.Detect(engine.CampusCharlesRiver, []engine.AnchorPoint{chapel}, onAnchor))
}

func TestAnchorCatalog_CampusesSorted(t *testing.T) {
	catalog := engine.AnchorCatalog{
		engine.CampusMedical:      {{Name: "a"}},
		engine.CampusCharlesRiver: {{Name: "b"}, {Name: "c"}},
		engine.CampusFenway:       {},
	}
	assert.Equal(t, []engine.Campus{engine.CampusCharlesRiver, engine.CampusFenway, engine.CampusMedical}, catalog.Campuses())
	assert.Equal(t, 3, catalog.Len())
}
