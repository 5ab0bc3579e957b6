package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// OpenFunc opens a named input for reading.
type OpenFunc func(name string) (io.ReadCloser, error)

// ReferenceFiles names the reference inputs of one recompute.
type ReferenceFiles struct {
	Geocode   string
	Overrides string
	// Anchors is optional; DefaultAnchors is decoded when it is empty.
	Anchors string
}

// LoadReference opens and decodes the reference inputs. An empty Overrides leaves the
// override table empty.
func LoadReference(open OpenFunc, files ReferenceFiles, defaultAnchors []byte) (engine.Reference, error) {
	var ref engine.Reference

	primary, err := loadGeoTable(open, files.Geocode)
	if err != nil {
		return ref, err
	}
	ref.Primary = primary

	ref.Overrides = engine.NewGeoTable()
	if files.Overrides != "" {
		if ref.Overrides, err = loadGeoTable(open, files.Overrides); err != nil {
			return ref, err
		}
	}

	if files.Anchors != "" {
		rc, err := open(files.Anchors)
		if err != nil {
			return ref, fmt.Errorf("failed to open anchor catalog '%s': %w", files.Anchors, err)
		}
		defer rc.Close()
		if ref.Anchors, err = DecodeAnchors(rc); err != nil {
			return ref, fmt.Errorf("anchor catalog '%s': %w", files.Anchors, err)
		}
	} else {
		if ref.Anchors, err = DecodeAnchors(bytes.NewReader(defaultAnchors)); err != nil {
			return ref, fmt.Errorf("built-in anchor catalog: %w", err)
		}
	}

	logger.Infof("Reference data loaded: %d primary locations, %d overrides, %d anchors in %d campuses.",
		ref.Primary.Len(), ref.Overrides.Len(), ref.Anchors.Len(), len(ref.Anchors))
	return ref, nil
}

func loadGeoTable(open OpenFunc, name string) (*engine.GeoTable, error) {
	rc, err := open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open geocode table '%s': %w", name, err)
	}
	defer rc.Close()
	table, err := DecodeGeoTable(rc, FormatFromName(name))
	if err != nil {
		return nil, fmt.Errorf("geocode table '%s': %w", name, err)
	}
	return table, nil
}
