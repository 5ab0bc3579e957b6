package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
)

func newResolver() *engine.GeoResolver {
	primary := engine.NewGeoTable()
	primary.Put("GSU Plaza", engine.GeoPoint{Lat: 42.3505, Lng: -71.1054, Zip: "02215"})
	primary.Put("L-Building Entry", engine.GeoPoint{Lat: 42.3356, Lng: -71.0723, Zip: "02118"})

	overrides := engine.NewGeoTable()
	overrides.Put("Sargent College", engine.GeoPoint{Lat: 42.3461, Lng: -71.1010, Zip: "02215"})
	overrides.Put("GSU Plaza", engine.GeoPoint{Lat: 1, Lng: 1, Zip: "00000"})

	return engine.NewGeoResolver(primary, overrides, engine.DefaultCampusRule())
}

func TestGeoResolver_PrimaryTableWinsOverOverride(t *testing.T) {
	loc := newResolver().Resolve("GSU Plaza")

	require.True(t, loc.Resolved())
	assert.Equal(t, 42.3505, *loc.Lat)
	assert.Equal(t, "02215", loc.Zip)
	assert.Equal(t, engine.CampusCharlesRiver, loc.Campus)
}

func TestGeoResolver_OverrideResolvesMissingPrimaryKey(t *testing.T) {
	loc := newResolver().Resolve("sargent college")

	require.True(t, loc.Resolved())
	assert.Equal(t, -71.1010, *loc.Lng)
	assert.Equal(t, engine.CampusFenway, loc.Campus)
}

func TestGeoResolver_UnknownKeyIsUnresolved(t *testing.T) {
	loc := newResolver().Resolve("Somewhere Else")

	assert.False(t, loc.Resolved())
	assert.Nil(t, loc.Lat)
	assert.Nil(t, loc.Lng)
	assert.Equal(t, "", loc.Zip)
	assert.Equal(t, engine.CampusUnresolved, loc.Campus)
}

func TestGeoResolver_LookupIgnoresCaseAndSurroundingWhitespace(t *testing.T) {
	r := newResolver()
	assert.Equal(t, r.Resolve("gsu plaza"), r.Resolve("  GSU Plaza  "))
	assert.True(t, r.Resolve("\tl-building ENTRY\n").Resolved())
}

func TestGeoResolver_NilTables(t *testing.T) {
	r := engine.NewGeoResolver(nil, nil, engine.CampusRule{})
	assert.False(t, r.Resolve("GSU Plaza").Resolved())
}

func TestCampusRule_Classify(t *testing.T) {
	rule := engine.DefaultCampusRule()

	tests := []struct {
		name string
		zip  string
		lat  float64
		want engine.Campus
	}{
		{"medical zip north of split", "02118", 42.40, engine.CampusMedical},
		{"medical zip south of split", "02118", 42.30, engine.CampusMedical},
		{"fenway zip south of split", "02215", 42.30, engine.CampusFenway},
		{"fenway zip north of split", "02215", 42.35, engine.CampusCharlesRiver},
		{"fenway zip on the split", "02215", 42.348, engine.CampusCharlesRiver},
		{"other zip", "02134", 42.30, engine.CampusCharlesRiver},
		{"empty zip", "", 42.30, engine.CampusCharlesRiver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Classify(tt.zip, tt.lat))
		})
	}
}

func TestGeoTable_PutNormalizesAndReplaces(t *testing.T) {
	table := engine.NewGeoTable()
	table.Put(" Marsh Chapel ", engine.GeoPoint{Lat: 1})
	table.Put("MARSH CHAPEL", engine.GeoPoint{Lat: 2})
	table.Put("   ", engine.GeoPoint{Lat: 3})

	assert.Equal(t, 1, table.Len())
	p, ok := table.Lookup("marsh chapel")
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Lat)
}
