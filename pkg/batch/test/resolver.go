// Package test provides helpers for testing batch components without the Fx container:
// fixed connection resolvers and execution factories.
package test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/ecoroute/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage/local"
)

// DBResolver resolves a fixed set of database connections by name.
type DBResolver map[string]database.DBConnection

// ResolveDBConnection implements database.DBConnectionResolver.
func (r DBResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	conn, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("database connection '%s' not found", name)
	}
	return conn, nil
}

// StorageResolver resolves a fixed set of storage connections by name.
type StorageResolver map[string]storage.StorageConnection

// ResolveStorageConnection implements storage.StorageConnectionResolver.
func (r StorageResolver) ResolveStorageConnection(ctx context.Context, name string) (storage.StorageConnection, error) {
	conn, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' not found", name)
	}
	return conn, nil
}

var (
	_ database.DBConnectionResolver     = DBResolver(nil)
	_ storage.StorageConnectionResolver = StorageResolver(nil)
)

// NewSQLiteConnection opens a file-backed SQLite connection under t.TempDir, closed on cleanup.
func NewSQLiteConnection(t *testing.T, name string) database.DBConnection {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), name+".db")}
	db, err := gormadapter.Open(cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, name)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// NewLocalStorage creates a local storage connection rooted at a fresh temporary directory
// and returns it with that directory.
func NewLocalStorage(t *testing.T, name string) (storage.StorageConnection, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageconfig.StorageConfig{Type: local.ProviderType, BaseDir: dir}, name)
	require.NoError(t, err)
	return conn, dir
}
