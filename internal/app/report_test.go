package app

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/snapshot"
)

func testPublished() *snapshot.Published {
	return &snapshot.Published{
		Meta: entity.SnapshotMeta{
			RunID:       "run-1",
			GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		Hotspots: []engine.HotspotRecord{
			{
				Serial: "BB-1", Description: "Fenway Campus Center", Campus: engine.CampusFenway,
				Lat: engine.Float(42.3419), Lng: engine.Float(-71.1005),
				WasteFillPercent: engine.Float(10), WasteDaysTo80: engine.Float(30),
				HotspotScore: 20, PlacementStatus: engine.StatusCold,
			},
			{
				Serial:             "BB-2",
				Description:        "GSU Plaza",
				Campus:             engine.CampusCharlesRiver,
				Lat:                engine.Float(42.3505),
				Lng:                engine.Float(-71.1054),
				WasteFillPercent:   engine.Float(92),
				WasteDaysTo80:      engine.Float(0.5),
				RecycleFillPercent: engine.Float(40),
				HotspotScore:       95,
				PlacementStatus:    engine.StatusHot,
			},
			{
				Serial: "BB-3", Description: "Nowhere",
				WasteFillPercent: engine.Float(88), HotspotScore: 50, PlacementStatus: engine.StatusGood,
			},
		},
		Suggested: map[engine.Campus][]engine.SuggestedSite{
			engine.CampusCharlesRiver: {{
				AnchorPoint:      engine.AnchorPoint{Name: "Agganis Arena", Lat: 42.3522, Lng: -71.1178, Reason: "events"},
				Campus:           engine.CampusCharlesRiver,
				PlacementStatus:  engine.StatusSuggested,
				NearestBinMeters: engine.Float(1041.2),
			}},
		},
	}
}

func TestWriteReport(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteReport(&out, testPublished(), "", engine.DefaultSummaryConfig()))
	report := out.String()

	assert.Contains(t, report, "Snapshot run-1 generated 2026-03-14 09:30:00 UTC (job execution -)")
	assert.Contains(t, report, "Critical bins (fill >= 85%): 2")
	assert.Contains(t, report, "Suggested sites: 1")
	assert.Contains(t, report, "Agganis Arena")
	assert.Contains(t, report, "1041.2")

	// The overall row follows the campus rows.
	assert.Less(t, strings.Index(report, "charles-river"), strings.Index(report, "\nall "))

	// Critical bins are ordered by their fuller stream, highest first.
	critical := report[strings.Index(report, "Critical bins"):strings.Index(report, "Most overdue")]
	assert.Less(t, strings.Index(critical, "BB-2"), strings.Index(critical, "BB-3"))
	assert.NotContains(t, critical, "BB-1")
}

func TestWriteReport_ThresholdAndCampus(t *testing.T) {
	cfg := engine.DefaultSummaryConfig()
	cfg.CriticalFillPercent = 90

	var out bytes.Buffer
	require.NoError(t, WriteReport(&out, testPublished(), "Charles-River", cfg))
	report := out.String()

	assert.Contains(t, report, "Critical bins (fill >= 90%): 1")
	assert.Contains(t, report, "BB-2")
	assert.NotContains(t, report, "BB-1")
	assert.NotContains(t, report, "BB-3")
	assert.NotContains(t, report, "\nall ")
}

func TestWriteReport_UnknownCampus(t *testing.T) {
	var out bytes.Buffer
	err := WriteReport(&out, testPublished(), "downtown", engine.DefaultSummaryConfig())
	assert.ErrorContains(t, err, "unknown campus 'downtown'")
}

func TestPreview(t *testing.T) {
	dir := t.TempDir()
	files := PreviewFiles{
		Telemetry: filepath.Join(dir, "telemetry.csv"),
		Geocode:   filepath.Join(dir, "geocoded_table.csv"),
	}
	writeFile(t, files.Telemetry, telemetryCSV)
	writeFile(t, files.Geocode, geocodeCSV)

	snap, err := Preview(engine.DefaultOptions(), []byte(anchorsYAML), files)
	require.NoError(t, err)

	var serials []string
	for _, r := range snap.Hotspots {
		serials = append(serials, r.Serial)
	}
	assert.Equal(t, []string{"BB-1", "BB-2", "BB-3"}, serials)
	assert.Equal(t, engine.CampusFenway, snap.Hotspots[0].Campus)
	assert.Equal(t, engine.CampusUnresolved, snap.Hotspots[2].Campus)
	require.Len(t, snap.Suggested[engine.CampusCharlesRiver], 1)
	assert.Equal(t, "Agganis Arena", snap.Suggested[engine.CampusCharlesRiver][0].Name)
	assert.Equal(t, 3, snap.Summary.Overall.Total)
}

func TestRunPreview_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	files := PreviewFiles{
		Telemetry: filepath.Join(dir, "telemetry.csv"),
		Geocode:   filepath.Join(dir, "geocoded_table.csv"),
	}
	writeFile(t, files.Telemetry, telemetryCSV)
	writeFile(t, files.Geocode, geocodeCSV)
	res := testResources(t, testConfig(dir, false))

	var out bytes.Buffer
	require.NoError(t, RunPreview("", res, files, &out))

	var doc struct {
		Hotspots []struct {
			Serial string  `json:"serial"`
			Campus *string `json:"campus"`
		} `json:"hotspots"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Hotspots, 3)
	assert.Nil(t, doc.Hotspots[2].Campus, "unresolved campus is null")
}

func TestRunPreview_MissingGeocode(t *testing.T) {
	dir := t.TempDir()
	files := PreviewFiles{
		Telemetry: filepath.Join(dir, "telemetry.csv"),
		Geocode:   filepath.Join(dir, "missing.csv"),
	}
	writeFile(t, files.Telemetry, telemetryCSV)

	var out bytes.Buffer
	err := RunPreview("", testResources(t, testConfig(dir, false)), files, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
