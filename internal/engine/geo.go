package engine

import "strings"

// NormalizeKey trims and lower-cases a location description for table lookups.
func NormalizeKey(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// GeoTable maps normalized location keys to coordinates and zip.
type GeoTable struct {
	entries map[string]GeoPoint
}

// NewGeoTable creates an empty GeoTable.
func NewGeoTable() *GeoTable {
	return &GeoTable{entries: make(map[string]GeoPoint)}
}

// Put stores p under the normalized form of key. Later puts for the same key replace earlier ones.
func (t *GeoTable) Put(key string, p GeoPoint) {
	k := NormalizeKey(key)
	if k == "" {
		return
	}
	t.entries[k] = p
}

// Lookup finds the entry for key after normalization. A nil table never matches.
func (t *GeoTable) Lookup(key string) (GeoPoint, bool) {
	if t == nil {
		return GeoPoint{}, false
	}
	p, ok := t.entries[NormalizeKey(key)]
	return p, ok
}

// Len returns the number of entries.
func (t *GeoTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// CampusRule derives a campus from a resolved zip and latitude.
// Zip MedicalZip is medical; zip FenwayZip south of FenwayLatSplit is fenway; anything else
// falls back to DefaultCampus.
type CampusRule struct {
	MedicalZip     string  `yaml:"medical_zip"`
	FenwayZip      string  `yaml:"fenway_zip"`
	FenwayLatSplit float64 `yaml:"fenway_lat_split"`
	DefaultCampus  Campus  `yaml:"default_campus"`
}

// DefaultCampusRule returns the rule for the three Boston campuses.
func DefaultCampusRule() CampusRule {
	return CampusRule{
		MedicalZip:     "02118",
		FenwayZip:      "02215",
		FenwayLatSplit: 42.348,
		DefaultCampus:  CampusCharlesRiver,
	}
}

// Classify applies the rule.
func (r CampusRule) Classify(zip string, lat float64) Campus {
	zip = strings.TrimSpace(zip)
	switch {
	case r.MedicalZip != "" && zip == r.MedicalZip:
		return CampusMedical
	case r.FenwayZip != "" && zip == r.FenwayZip && lat < r.FenwayLatSplit:
		return CampusFenway
	default:
		return r.DefaultCampus
	}
}

// GeoResolver resolves bin descriptions through a primary table and then a manual-override table.
type GeoResolver struct {
	primary   *GeoTable
	overrides *GeoTable
	rule      CampusRule
}

// NewGeoResolver creates a GeoResolver. Either table may be nil.
func NewGeoResolver(primary, overrides *GeoTable, rule CampusRule) *GeoResolver {
	if rule.DefaultCampus == CampusUnresolved {
		rule.DefaultCampus = CampusCharlesRiver
	}
	return &GeoResolver{primary: primary, overrides: overrides, rule: rule}
}

// Resolve maps description to a location. The override table is consulted only when the primary
// table has no match; when neither matches the location is unresolved, which is not an error.
func (g *GeoResolver) Resolve(description string) ResolvedLocation {
	p, ok := g.primary.Lookup(description)
	if !ok {
		p, ok = g.overrides.Lookup(description)
	}
	if !ok {
		return ResolvedLocation{}
	}
	return ResolvedLocation{
		Lat:    Float(p.Lat),
		Lng:    Float(p.Lng),
		Zip:    p.Zip,
		Campus: g.rule.Classify(p.Zip, p.Lat),
	}
}
