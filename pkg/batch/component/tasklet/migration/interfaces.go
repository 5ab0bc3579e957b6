package migration

import (
	"context"
	"io/fs"

	dbconfig "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/config"
)

// DefaultMigrationsTable tracks the applied schema version of the snapshot database.
const DefaultMigrationsTable = "ecoroute_schema_migrations"

// Migrator applies schema migrations to one database.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS and returns the
	// resulting schema version. tableName is the migration history table.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) (uint, error)
}

// MigratorFactory creates a Migrator for a database configuration.
type MigratorFactory func(dbConfig dbconfig.DatabaseConfig) Migrator
