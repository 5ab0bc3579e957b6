package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	dbconfig "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// migratorImpl runs golang-migrate over a dedicated connection. golang-migrate closes the
// *sql.DB it is given, so the shared connection pool of the application is never handed over.
type migratorImpl struct {
	dbConfig dbconfig.DatabaseConfig
}

// NewMigrator creates a Migrator for dbConfig.
func NewMigrator(dbConfig dbconfig.DatabaseConfig) Migrator {
	return &migratorImpl{dbConfig: dbConfig}
}

func (m *migratorImpl) databaseDriver(sqlDB *sql.DB, tableName string) (database.Driver, error) {
	switch m.dbConfig.Type {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: tableName, SchemaName: m.dbConfig.Schema})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: tableName})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: tableName})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbConfig.Type)
	}
}

// Up applies pending migrations. migrate.ErrNoChange is not an error.
func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) (uint, error) {
	logger.Infof("Executing migration 'up' (DB: %s, Path: %s, Table: %s)", m.dbConfig.Type, path, tableName)

	gormDB, err := gormadapter.Open(m.dbConfig)
	if err != nil {
		return 0, fmt.Errorf("failed to open migration connection: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		sqlDB.Close()
		return 0, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	dbDriver, err := m.databaseDriver(sqlDB, tableName)
	if err != nil {
		sourceDriver.Close()
		sqlDB.Close()
		return 0, fmt.Errorf("failed to create database driver: %w", err)
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbConfig.Type, dbDriver)
	if err != nil {
		sourceDriver.Close()
		dbDriver.Close()
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer mInstance.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mInstance.GracefulStop <- true
		case <-done:
		}
	}()

	if err := mInstance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration failed (DB: %s, Path: %s): %w", m.dbConfig.Type, path, err)
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	version, dirty, err := mInstance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	logger.Infof("Migration 'up' completed. Schema version: %d", version)
	return version, nil
}
