// Package migration provides the schema migration tasklet, backed by golang-migrate.
package migration

import (
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// ComponentName is the JSL reference of the migration tasklet.
const ComponentName = "schemaMigrationTasklet"

// MigrationTaskletComponentBuilderParams defines the dependencies for NewMigrationTaskletComponentBuilder.
type MigrationTaskletComponentBuilderParams struct {
	fx.In
	DBResolver     database.DBConnectionResolver
	AllMigrationFS map[string]fs.FS `name:"allMigrationFS"`
}

// NewMigrationTaskletComponentBuilder creates a jsl.ComponentBuilder for MigrationTasklet.
func NewMigrationTaskletComponentBuilder(p MigrationTaskletComponentBuilderParams) jsl.ComponentBuilder {
	return func(cfg *config.Config, properties map[string]string) (interface{}, error) {
		return NewMigrationTasklet(p.DBResolver, NewMigrator, p.AllMigrationFS, properties)
	}
}

type migrationTaskletBuilder struct {
	fx.In
	Builder jsl.ComponentBuilder `name:"schemaMigrationTasklet"`
}

// RegisterMigrationTaskletBuilder registers the migration tasklet builder with the JobFactory.
func RegisterMigrationTaskletBuilder(jf *support.JobFactory, b migrationTaskletBuilder) {
	jf.RegisterComponentBuilder(ComponentName, b.Builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", ComponentName)
}

// Module provides and registers the migration tasklet. The application supplies the
// migration file systems as a map[string]fs.FS named "allMigrationFS".
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewMigrationTaskletComponentBuilder,
		fx.ResultTags(`name:"schemaMigrationTasklet"`),
	)),
	fx.Invoke(RegisterMigrationTaskletBuilder),
)
