package gorm

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// GormDBConnectionResolver is the GORM implementation of database.DBConnectionResolver.
// It routes a connection name to the provider of the configured database type.
type GormDBConnectionResolver struct {
	dbProviders map[string]database.DBProvider // keyed by database type (e.g., "postgres", "mysql").
	cfg         *config.Config
}

// Verify that GormDBConnectionResolver implements the database.DBConnectionResolver interface.
var _ database.DBConnectionResolver = (*GormDBConnectionResolver)(nil)

// GormDBConnectionResolverParams defines the dependencies of NewGormDBConnectionResolver.
type GormDBConnectionResolverParams struct {
	fx.In
	DBProviders []database.DBProvider `group:"db_providers"`
	Cfg         *config.Config
}

// NewGormDBConnectionResolver creates a new GormDBConnectionResolver.
func NewGormDBConnectionResolver(p GormDBConnectionResolverParams) *GormDBConnectionResolver {
	providerMap := make(map[string]database.DBProvider)
	for _, provider := range p.DBProviders {
		providerMap[provider.Type()] = provider
	}
	return &GormDBConnectionResolver{dbProviders: providerMap, cfg: p.Cfg}
}

// ResolveDBConnection resolves a database connection with the specified name.
// A connection that fails its ping is re-established once.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	var dbConfig dbconfig.DatabaseConfig
	if err := config.DecodeNamed(r.cfg.Ecoroute.Database, "database", name, &dbConfig); err != nil {
		return nil, err
	}
	provider, ok := r.dbProviders[dbConfig.Type]
	if !ok {
		return nil, fmt.Errorf("no database provider registered for type '%s' (connection '%s')", dbConfig.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, err
	}
	if pingErr := conn.Ping(ctx); pingErr != nil {
		logger.Warnf("Database connection '%s' failed ping, reconnecting: %v", name, pingErr)
		return provider.ForceReconnect(name)
	}
	return conn, nil
}

// CloseAll closes the connections of every provider.
func (r *GormDBConnectionResolver) CloseAll() error {
	var result *multierror.Error
	for _, provider := range r.dbProviders {
		if err := provider.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
