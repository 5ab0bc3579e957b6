// Package config holds the EcoRoute application sections of the configuration file
// (engine, inputs, export, publish) on top of the batch runtime configuration.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/ecoroute/internal/engine"
	coreConfig "github.com/tigerroll/ecoroute/pkg/batch/core/config"
)

// Section names under the ecoroute root key.
const (
	SectionEngine  = "engine"
	SectionInputs  = "inputs"
	SectionExport  = "export"
	SectionPublish = "publish"
)

// InputsConfig locates the input files on a named storage connection.
type InputsConfig struct {
	// StorageRef names the ecoroute.storage entry the inputs are read from.
	StorageRef string `yaml:"storage_ref"`
	// Telemetry is the per-stream telemetry CSV.
	Telemetry string `yaml:"telemetry"`
	// Geocode is the primary geocode table (CSV or YAML).
	Geocode string `yaml:"geocode"`
	// Overrides is the manual-override geocode table. Optional.
	Overrides string `yaml:"overrides"`
	// Anchors is the anchor catalog. Optional; the embedded catalog is used when empty.
	Anchors string `yaml:"anchors"`
}

// ExportConfig configures the Parquet export of the published snapshot.
type ExportConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StorageRef    string `yaml:"storage_ref"`
	OutputBaseDir string `yaml:"output_base_dir"`
}

// RedisConfig configures the snapshot cache.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// NATSConfig configures the snapshot-published event.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	// JobSubject receives a notice for every finished job run, successful or not.
	JobSubject     string        `yaml:"job_subject"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// PublishConfig configures where the terminal snapshot goes.
type PublishConfig struct {
	// DBRef names the ecoroute.database entry holding the snapshot tables.
	DBRef string      `yaml:"db_ref"`
	Redis RedisConfig `yaml:"redis"`
	NATS  NATSConfig  `yaml:"nats"`
}

// AppConfig is the decoded set of application sections.
type AppConfig struct {
	Engine  engine.Options
	Inputs  InputsConfig
	Export  ExportConfig
	Publish PublishConfig
}

// Default returns the application defaults.
func Default() *AppConfig {
	return &AppConfig{
		Engine: engine.DefaultOptions(),
		Inputs: InputsConfig{
			StorageRef: "inputs",
			Telemetry:  "telemetry.csv",
			Geocode:    "geocoded_table.csv",
		},
		Export: ExportConfig{
			StorageRef:    "exports",
			OutputBaseDir: "snapshots",
		},
		Publish: PublishConfig{
			DBRef: "snapshot",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "ecoroute:snapshot",
				TTL:       24 * time.Hour,
			},
			NATS: NATSConfig{
				URL:            "nats://localhost:4222",
				Subject:        "ecoroute.snapshot.published",
				JobSubject:     "ecoroute.job.finished",
				Name:           "ecoroute",
				ConnectTimeout: 5 * time.Second,
			},
		},
	}
}

// Load decodes the application sections of cfg over the defaults and validates them.
func Load(cfg *coreConfig.Config) (*AppConfig, error) {
	app := Default()
	for name, target := range map[string]interface{}{
		SectionEngine:  &app.Engine,
		SectionInputs:  &app.Inputs,
		SectionExport:  &app.Export,
		SectionPublish: &app.Publish,
	} {
		if err := coreConfig.DecodeSection(cfg, name, target); err != nil {
			return nil, err
		}
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var result *multierror.Error
	if err := c.Engine.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("engine: %w", err))
	}
	if c.Inputs.StorageRef == "" {
		result = multierror.Append(result, fmt.Errorf("inputs.storage_ref is required"))
	}
	if c.Inputs.Telemetry == "" {
		result = multierror.Append(result, fmt.Errorf("inputs.telemetry is required"))
	}
	if c.Inputs.Geocode == "" {
		result = multierror.Append(result, fmt.Errorf("inputs.geocode is required"))
	}
	if c.Export.Enabled && c.Export.StorageRef == "" {
		result = multierror.Append(result, fmt.Errorf("export.storage_ref is required when export is enabled"))
	}
	if c.Publish.DBRef == "" {
		result = multierror.Append(result, fmt.Errorf("publish.db_ref is required"))
	}
	if c.Publish.Redis.Enabled && c.Publish.Redis.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("publish.redis.addr is required when redis is enabled"))
	}
	if c.Publish.NATS.Enabled && (c.Publish.NATS.URL == "" || c.Publish.NATS.Subject == "") {
		result = multierror.Append(result, fmt.Errorf("publish.nats.url and publish.nats.subject are required when nats is enabled"))
	}
	return result.ErrorOrNil()
}
