// Package config holds the settings of a named storage connection.
package config

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("local", "gcs", "s3").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Path to a service account key file (gcs).
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
	Endpoint        string `yaml:"endpoint"`         // host:port of an S3 compatible endpoint (s3).
	AccessKey       string `yaml:"access_key"`       // Static access key (s3).
	SecretKey       string `yaml:"secret_key"`       // Static secret key (s3).
	UseSSL          bool   `yaml:"use_ssl"`          // Use TLS for the endpoint (s3).
	Region          string `yaml:"region"`           // Bucket region (s3).
}
