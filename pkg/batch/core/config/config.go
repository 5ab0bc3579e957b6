// Package config provides structures and utilities for managing application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "America/New_York"). Export partitions use it.
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the job launched by the run command.
	JobName string `yaml:"job_name"`
	// ChunkSize is the default chunk size for chunk-oriented steps without an item-count.
	ChunkSize int `yaml:"chunk_size"`
}

// PrometheusConfig configures the Prometheus metric recorder.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
	// PushGatewayURL, when set, receives the collected metrics once the job finishes.
	PushGatewayURL string `yaml:"push_gateway_url"`
	// TextfilePath, when set, receives the collected metrics in text exposition format
	// (for the node_exporter textfile collector).
	TextfilePath string `yaml:"textfile_path"`
	// JobLabel is the Pushgateway job grouping label.
	JobLabel string `yaml:"job_label"`
}

// OTelConfig configures an OTLP exporter.
type OTelConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is host:port of the OTLP receiver.
	Endpoint string `yaml:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
	Insecure bool   `yaml:"insecure"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	// ExportIntervalSeconds is the metric reader interval; unused for traces.
	ExportIntervalSeconds int `yaml:"export_interval_seconds"`
}

// MetricsConfig selects the metric backends.
type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	OTel       OTelConfig       `yaml:"otel"`
}

// InfrastructureConfig holds settings for infrastructure components.
type InfrastructureConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing OTelConfig    `yaml:"tracing"`
}

// EcorouteConfig holds all configuration under the "ecoroute" top-level key.
type EcorouteConfig struct {
	System         SystemConfig         `yaml:"system"`
	Batch          BatchConfig          `yaml:"batch"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Database holds named database connection settings, decoded by the database providers.
	Database map[string]interface{} `yaml:"database"`
	// Storage holds named storage connection settings, decoded by the storage providers.
	Storage map[string]interface{} `yaml:"storage"`
	// Sections holds the remaining application sections (engine, inputs, export, publish).
	// Use DecodeSection to read one into a typed struct.
	Sections map[string]interface{} `yaml:",inline"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Ecoroute EcorouteConfig `yaml:"ecoroute"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Ecoroute: EcorouteConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				JobName:   "hotspotSnapshotJob",
				ChunkSize: 50,
			},
			Infrastructure: InfrastructureConfig{
				Metrics: MetricsConfig{
					Prometheus: PrometheusConfig{JobLabel: "ecoroute"},
					OTel:       OTelConfig{Protocol: "http", ServiceName: "ecoroute", ExportIntervalSeconds: 15},
				},
				Tracing: OTelConfig{Protocol: "http", ServiceName: "ecoroute"},
			},
			Database: map[string]interface{}{},
			Storage:  map[string]interface{}{},
			Sections: map[string]interface{}{},
		},
	}
}
