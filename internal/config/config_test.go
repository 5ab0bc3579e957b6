package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
	coreConfig "github.com/tigerroll/ecoroute/pkg/batch/core/config"
)

const sampleYAML = `
ecoroute:
  engine:
    fusion:
      duplicate_policy: average
    scoring:
      max_days: 10
    coverage:
      radius_meters: 120
  inputs:
    storage_ref: landing
    telemetry: raw/telemetry.csv
  export:
    enabled: true
    output_base_dir: parquet
  publish:
    redis:
      enabled: true
      ttl: 2h
`

func TestLoad_OverlaysSectionsOnDefaults(t *testing.T) {
	cfg, err := coreConfig.LoadConfig("", coreConfig.EmbeddedConfig(sampleYAML))
	require.NoError(t, err)

	app, err := Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, engine.DuplicateAverage, app.Engine.Fusion.DuplicatePolicy)
	assert.Equal(t, 10.0, app.Engine.Scoring.MaxDays)
	// Untouched scoring fields keep their defaults.
	assert.Equal(t, engine.DefaultScoringConfig().HotBelowDays, app.Engine.Scoring.HotBelowDays)
	assert.Equal(t, 120.0, app.Engine.Coverage.RadiusMeters)
	assert.Equal(t, "02118", app.Engine.Campus.MedicalZip)

	assert.Equal(t, "landing", app.Inputs.StorageRef)
	assert.Equal(t, "raw/telemetry.csv", app.Inputs.Telemetry)
	assert.Equal(t, "geocoded_table.csv", app.Inputs.Geocode)

	assert.True(t, app.Export.Enabled)
	assert.Equal(t, "exports", app.Export.StorageRef)
	assert.Equal(t, "parquet", app.Export.OutputBaseDir)

	assert.True(t, app.Publish.Redis.Enabled)
	assert.Equal(t, 2*time.Hour, app.Publish.Redis.TTL)
	assert.False(t, app.Publish.NATS.Enabled)
	assert.Equal(t, "ecoroute.snapshot.published", app.Publish.NATS.Subject)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("ECOROUTE_ENGINE_COVERAGE_RADIUS_METERS", "45.5")
	t.Setenv("ECOROUTE_PUBLISH_DB_REF", "reporting")

	cfg, err := coreConfig.LoadConfig("", coreConfig.EmbeddedConfig(sampleYAML))
	require.NoError(t, err)
	app, err := Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, 45.5, app.Engine.Coverage.RadiusMeters)
	assert.Equal(t, "reporting", app.Publish.DBRef)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	yaml := `
ecoroute:
  engine:
    scoring:
      max_days: 0
    coverage:
      radius_meters: -1
  inputs:
    telemetry: ""
`
	cfg, err := coreConfig.LoadConfig("", coreConfig.EmbeddedConfig(yaml))
	require.NoError(t, err)

	_, err = Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_days")
	assert.Contains(t, err.Error(), "radius_meters")
	assert.Contains(t, err.Error(), "inputs.telemetry is required")
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
