package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/ecoroute/internal/engine"
)

// KnownCampuses lists the campuses an anchor catalog may name.
var KnownCampuses = []engine.Campus{engine.CampusCharlesRiver, engine.CampusMedical, engine.CampusFenway}

// ParseCampus maps a campus name to a Campus. Matching ignores case and surrounding space.
func ParseCampus(name string) (engine.Campus, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range KnownCampuses {
		if string(c) == n {
			return c, true
		}
	}
	return engine.CampusUnresolved, false
}

type anchorDocument struct {
	Campuses map[string][]engine.AnchorPoint `yaml:"campuses"`
}

// DecodeAnchors reads an anchor catalog:
//
//	campuses:
//	  charles-river:
//	    - {name: GSU Plaza, lat: 42.3505, lng: -71.1054, reason: student union}
//
// Order within a campus is kept. Unknown campuses, unnamed anchors and out-of-range
// coordinates are reported together.
func DecodeAnchors(r io.Reader) (engine.AnchorCatalog, error) {
	var doc anchorDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode anchor catalog: %w", err)
	}

	var result *multierror.Error
	catalog := make(engine.AnchorCatalog, len(doc.Campuses))
	for name, anchors := range doc.Campuses {
		campus, ok := ParseCampus(name)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("unknown campus %q", name))
			continue
		}
		for i, a := range anchors {
			if strings.TrimSpace(a.Name) == "" {
				result = multierror.Append(result, fmt.Errorf("%s anchor #%d has no name", campus, i+1))
				continue
			}
			if !validCoordinate(a.Lat, a.Lng) || (a.Lat == 0 && a.Lng == 0) {
				result = multierror.Append(result, fmt.Errorf("%s anchor %q has invalid coordinates (%v, %v)", campus, a.Name, a.Lat, a.Lng))
				continue
			}
			catalog[campus] = append(catalog[campus], a)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return catalog, nil
}
