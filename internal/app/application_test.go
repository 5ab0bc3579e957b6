package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	telemetryCSV = "Serial,Description,Stream,Avg Days to Fill,Avg Fill Percent,Estimated Days to 80\n" +
		"BB-2,GSU Plaza,waste,2,92,0.5\n" +
		"BB-2,GSU Plaza,recycle,9,40,6\n" +
		"BB-1,Fenway Campus Center,waste,25,10,30\n" +
		"BB-3,Nowhere,waste,12,50,8\n"

	geocodeCSV = "Address,Y,X,Zip Code\n" +
		"GSU Plaza,42.3505,-71.1054,02215\n" +
		"Fenway Campus Center,42.3419,-71.1005,02215\n"

	anchorsYAML = `campuses:
  charles-river:
    - {name: GSU Plaza, lat: 42.3505, lng: -71.1054, reason: student union}
    - {name: Agganis Arena, lat: 42.3522, lng: -71.1178, reason: events}
  fenway:
    - {name: Fenway Campus Center, lat: 42.3419, lng: -71.1005, reason: dining}
`

	repoResources = "../../cmd/ecoroute/resources"
)

// testResources uses the job definition and migrations the binary embeds.
func testResources(t *testing.T, configYAML string) Resources {
	t.Helper()
	jobYAML, err := os.ReadFile(filepath.Join(repoResources, "job.yaml"))
	require.NoError(t, err)
	return Resources{
		Config:     []byte(configYAML),
		JSL:        jobYAML,
		Migrations: os.DirFS(filepath.Join(repoResources, "migrations")),
		Anchors:    []byte(anchorsYAML),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(dir string, exportEnabled bool) string {
	return fmt.Sprintf(`
ecoroute:
  system:
    logging:
      level: WARN
  database:
    snapshot:
      type: sqlite
      database: %q
  storage:
    inputs:
      type: local
      base_dir: %q
    exports:
      type: local
      base_dir: %q
  export:
    enabled: %t
    storage_ref: exports
    output_base_dir: snapshots
`, filepath.Join(dir, "snapshot.db"), filepath.Join(dir, "inputs"), filepath.Join(dir, "exports"), exportEnabled)
}

func TestRunApplication_PublishesAndReports(t *testing.T) {
	t.Setenv(DBAdaptersEnv, "sqlite")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "inputs", "telemetry.csv"), telemetryCSV)
	writeFile(t, filepath.Join(dir, "inputs", "geocoded_table.csv"), geocodeCSV)
	res := testResources(t, testConfig(dir, true))

	require.NoError(t, RunApplication(context.Background(), "", res))

	exported, err := filepath.Glob(filepath.Join(dir, "exports", "snapshots", "dt=*", "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, exported, 2, "hotspots and suggested_sites")

	var out bytes.Buffer
	require.NoError(t, RunReport(context.Background(), "", res, ReportOptions{CriticalPercent: 85}, &out))
	report := out.String()
	assert.Contains(t, report, "charles-river")
	assert.Contains(t, report, "Critical bins (fill >= 85%): 1")
	assert.Contains(t, report, "BB-2")
	assert.Contains(t, report, "Agganis Arena")

	// A second run replaces the snapshot instead of adding to it.
	require.NoError(t, RunApplication(context.Background(), "", res))
	out.Reset()
	require.NoError(t, RunReport(context.Background(), "", res, ReportOptions{Campus: "fenway"}, &out))
	assert.Contains(t, out.String(), "BB-1")
	assert.NotContains(t, out.String(), "BB-2")
}

func TestRunApplication_FailsOnMissingInputs(t *testing.T) {
	t.Setenv(DBAdaptersEnv, "sqlite")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "inputs", "telemetry.csv"), telemetryCSV)
	res := testResources(t, testConfig(dir, false))

	err := RunApplication(context.Background(), "", res)
	assert.ErrorContains(t, err, "FAILED")

	// The schema was migrated before reference loading failed, so the report finds empty tables.
	var out bytes.Buffer
	require.NoError(t, RunReport(context.Background(), "", res, ReportOptions{}, &out))
	assert.Contains(t, out.String(), "No snapshot has been published yet")
}

func TestRunValidate(t *testing.T) {
	t.Setenv(DBAdaptersEnv, "sqlite")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "inputs", "telemetry.csv"), telemetryCSV)
	writeFile(t, filepath.Join(dir, "inputs", "geocoded_table.csv"), geocodeCSV)
	res := testResources(t, testConfig(dir, false))

	var out bytes.Buffer
	require.NoError(t, RunValidate(context.Background(), "", res, &out))
	assert.Contains(t, out.String(), "job 'hotspotSnapshotJob': ok")
	assert.Contains(t, out.String(), "reference data: ok (2 locations, 0 overrides, 3 anchors)")
	assert.Contains(t, out.String(), "telemetry: ok (4 rows, 4 decoded, 0 dropped)")
}

func TestRunValidate_ReportsMissingInputs(t *testing.T) {
	t.Setenv(DBAdaptersEnv, "sqlite")
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inputs"), 0o755))
	res := testResources(t, testConfig(dir, false))

	var out bytes.Buffer
	err := RunValidate(context.Background(), "", res, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference data")
	assert.Contains(t, err.Error(), "telemetry")
}
