package ingest

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// Format is the encoding of a geocode table.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// FormatFromName picks the format from the file extension; anything but .yaml/.yml is CSV.
func FormatFromName(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Geocode columns after header normalization.
const (
	colKey = "key"
	colLat = "lat"
	colLng = "lng"
	colZip = "zip"
)

// The geocoder export names its columns Address, X, Y and Zip Code.
var geocodeAliases = map[string]string{
	"address":     colKey,
	"description": colKey,
	"location":    colKey,
	"y":           colLat,
	"latitude":    colLat,
	"x":           colLng,
	"lon":         colLng,
	"long":        colLng,
	"longitude":   colLng,
	"zip_code":    colZip,
	"zipcode":     colZip,
	"postal_code": colZip,
}

// GeoEntry is one row of a YAML geocode table. Lat and Lng are nil when the entry leaves
// them out.
type GeoEntry struct {
	Key string   `yaml:"key"`
	Lat *float64 `yaml:"lat"`
	Lng *float64 `yaml:"lng"`
	Zip string   `yaml:"zip"`
}

// DecodeGeoTable reads a geocode table in the given format. Rows without a key or without
// valid coordinates are skipped. When a key repeats, the later row wins.
func DecodeGeoTable(r io.Reader, format Format) (*engine.GeoTable, error) {
	switch format {
	case FormatYAML:
		return decodeGeoYAML(r)
	case FormatCSV, "":
		return decodeGeoCSV(r)
	default:
		return nil, fmt.Errorf("unsupported geocode format %q", format)
	}
}

func decodeGeoCSV(r io.Reader) (*engine.GeoTable, error) {
	table := engine.NewGeoTable()
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		return nil, fmt.Errorf("failed to read geocode header: %w", err)
	}
	cols := indexHeader(header, geocodeAliases)
	for _, required := range []string{colKey, colLat, colLng} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("geocode header has no %q column (got %v)", required, header)
		}
	}

	line, skipped := 1, 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read geocode row %d: %w", line+1, err)
		}
		line++
		key := field(record, cols, colKey)
		lat := ParseNumber(field(record, cols, colLat))
		lng := ParseNumber(field(record, cols, colLng))
		if engine.NormalizeKey(key) == "" || lat == nil || lng == nil || !validCoordinate(*lat, *lng) {
			skipped++
			continue
		}
		table.Put(key, engine.GeoPoint{Lat: *lat, Lng: *lng, Zip: strings.TrimSpace(field(record, cols, colZip))})
	}
	if skipped > 0 {
		logger.Debugf("Geocode table: %d rows without key or coordinates skipped.", skipped)
	}
	return table, nil
}

func decodeGeoYAML(r io.Reader) (*engine.GeoTable, error) {
	var entries []GeoEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode geocode YAML: %w", err)
	}
	table := engine.NewGeoTable()
	for i, e := range entries {
		if engine.NormalizeKey(e.Key) == "" || e.Lat == nil || e.Lng == nil || !validCoordinate(*e.Lat, *e.Lng) {
			logger.Warnf("Geocode YAML entry #%d (%q) has no key or invalid coordinates; skipped.", i+1, e.Key)
			continue
		}
		table.Put(e.Key, engine.GeoPoint{Lat: *e.Lat, Lng: *e.Lng, Zip: strings.TrimSpace(e.Zip)})
	}
	return table, nil
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
