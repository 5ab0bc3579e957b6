package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

const taskletName = "migration_tasklet"

// ContextKeySchemaVersion holds the schema version reached by the migration.
const ContextKeySchemaVersion = "migration.schema_version"

// MigrationTaskletConfig holds the JSL properties of MigrationTasklet.
type MigrationTaskletConfig struct {
	// DBRef is the name of the database connection to migrate.
	DBRef string `yaml:"dbRef"`
	// MigrationFSName selects one of the registered migration file systems.
	MigrationFSName string `yaml:"migrationFSName"`
	// MigrationDir is the directory inside the file system. Defaults to the database type.
	MigrationDir string `yaml:"migrationDir"`
	// Table is the migration history table.
	Table string `yaml:"table"`
}

// MigrationTasklet applies the migrations of one file system to one database connection.
type MigrationTasklet struct {
	props           MigrationTaskletConfig
	dbResolver      database.DBConnectionResolver
	migratorFactory MigratorFactory
	allMigrationFS  map[string]fs.FS
	ec              model.ExecutionContext
}

// NewMigrationTasklet binds properties and validates the references that can be checked
// before the job runs.
func NewMigrationTasklet(
	dbResolver database.DBConnectionResolver,
	migratorFactory MigratorFactory,
	allMigrationFS map[string]fs.FS,
	properties map[string]string,
) (*MigrationTasklet, error) {
	props := MigrationTaskletConfig{Table: DefaultMigrationsTable}
	if err := configbinder.BindProperties(properties, &props); err != nil {
		return nil, exception.NewBatchError(taskletName, "invalid properties", err, false, false)
	}
	if props.DBRef == "" {
		return nil, exception.NewBatchErrorf(taskletName, "property 'dbRef' is required")
	}
	if props.MigrationFSName == "" {
		return nil, exception.NewBatchErrorf(taskletName, "property 'migrationFSName' is required")
	}
	if _, ok := allMigrationFS[props.MigrationFSName]; !ok {
		return nil, exception.NewBatchErrorf(taskletName, "migration FS '%s' not found", props.MigrationFSName)
	}
	if migratorFactory == nil {
		migratorFactory = NewMigrator
	}
	return &MigrationTasklet{
		props:           props,
		dbResolver:      dbResolver,
		migratorFactory: migratorFactory,
		allMigrationFS:  allMigrationFS,
		ec:              model.NewExecutionContext(),
	}, nil
}

// Execute resolves the connection first, so a shared in-memory database outlives the
// migration connection, then applies the pending migrations.
func (t *MigrationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	conn, err := t.dbResolver.ResolveDBConnection(ctx, t.props.DBRef)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "failed to resolve database connection '"+t.props.DBRef+"'", err, false, false)
	}
	dbConfig := conn.Config()

	dir := t.props.MigrationDir
	if dir == "" {
		dir = dbConfig.Type
	}
	logger.Infof("Migrating database '%s' (%s) from '%s/%s'.", t.props.DBRef, dbConfig.Type, t.props.MigrationFSName, dir)

	version, err := t.migratorFactory(dbConfig).Up(ctx, t.allMigrationFS[t.props.MigrationFSName], dir, t.props.Table)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "migration 'up' failed", err, false, false)
	}
	t.ec.Put(ContextKeySchemaVersion, int(version))
	return model.ExitStatusCompleted, nil
}

// Close does nothing; the migration connection is closed by Execute.
func (t *MigrationTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *MigrationTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

func (t *MigrationTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
