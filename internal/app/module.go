// Package app wires the EcoRoute batch application: configuration, reference resources,
// database and storage adapters, snapshot publishers and the step components of
// hotspotSnapshotJob.
package app

import (
	"io/fs"
	"os"
	"strings"

	"go.uber.org/fx"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/snapshot"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage/s3"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	"github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	"github.com/tigerroll/ecoroute/pkg/batch/listener/notification"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// MigrationFSName is the key of the application migrations in the "allMigrationFS" map.
// The JSL migrateSchema step refers to it through its migrationFSName property.
const MigrationFSName = "ecoroute"

// DBAdaptersEnv selects the database providers to register, comma separated.
const DBAdaptersEnv = "DB_ADAPTERS"

// DBProviderMap maps a database type to its provider constructor.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// StorageProviderMap maps a storage type to its provider constructor.
var StorageProviderMap = map[string]func(cfg *config.Config) storage.StorageProvider{
	"local": local.NewLocalProvider,
	"gcs":   gcs.NewGCSProvider,
	"s3":    s3.NewS3Provider,
}

// Resources are the files embedded in the binary.
type Resources struct {
	Config config.EmbeddedConfig
	JSL    jsl.JSLDefinitionBytes
	// Migrations holds one directory of migration files per database type.
	Migrations fs.FS
	// Anchors is the built-in anchor catalog used when no catalog file is configured.
	Anchors []byte
}

// DBProviderOptions registers the database providers named by DB_ADAPTERS, or every
// known provider when the variable is unset.
func DBProviderOptions() []fx.Option {
	adapters := os.Getenv(DBAdaptersEnv)
	if adapters == "" {
		adapters = "postgres,mysql,sqlite"
	}

	var options []fx.Option
	seen := make(map[string]bool)
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		provider, ok := DBProviderMap[name]
		if !ok {
			logger.Warnf("DB provider '%s' is configured but not supported. Skipping.", name)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))))
		logger.Debugf("DB provider '%s' selected and registered.", name)
	}
	return options
}

// StorageProviderOptions registers every storage provider. Connections are opened lazily,
// so an unused provider costs nothing.
func StorageProviderOptions() []fx.Option {
	options := make([]fx.Option, 0, len(StorageProviderMap))
	for _, provider := range StorageProviderMap {
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"storage_providers"`))))
	}
	return options
}

// NewJSLDefinitions parses the embedded job definitions.
func NewJSLDefinitions(data jsl.JSLDefinitionBytes) (*jsl.Definitions, error) {
	defs := jsl.NewDefinitions()
	if err := defs.LoadFromBytes(data); err != nil {
		return nil, err
	}
	return defs, nil
}

// MigrationFSParams defines the dependencies of NewMigrationFSMap.
type MigrationFSParams struct {
	fx.In
	Migrations fs.FS `name:"applicationMigrationsFS"`
}

// NewMigrationFSMap exposes the application migrations to the migration tasklet.
func NewMigrationFSMap(p MigrationFSParams) map[string]fs.FS {
	fsMap := make(map[string]fs.FS)
	if p.Migrations != nil {
		fsMap[MigrationFSName] = p.Migrations
	}
	logger.Debugf("Aggregated %d migration file systems.", len(fsMap))
	return fsMap
}

// NewRedisCache returns the snapshot cache, or nil when the cache is disabled.
func NewRedisCache(lc fx.Lifecycle, app *appconfig.AppConfig) *snapshot.RedisCache {
	rc := app.Publish.Redis
	if !rc.Enabled {
		return nil
	}
	client := snapshot.NewRedisClient(rc)
	lc.Append(fx.StopHook(client.Close))
	logger.Infof("Snapshot cache enabled (redis %s, prefix %s).", rc.Addr, rc.KeyPrefix)
	return snapshot.NewRedisCache(client, rc.KeyPrefix, rc.TTL)
}

// NewNATSNotifier returns the NATS notifier, or nil when events are disabled.
func NewNATSNotifier(lc fx.Lifecycle, app *appconfig.AppConfig) *snapshot.NATSNotifier {
	nc := app.Publish.NATS
	if !nc.Enabled {
		return nil
	}
	n := snapshot.NewNATSNotifier(nc)
	lc.Append(fx.StopHook(n.Close))
	logger.Infof("Snapshot events enabled (nats %s, subject %s).", nc.URL, nc.Subject)
	return n
}

// NewSnapshotPublishers lists the enabled publishers. The cache is swapped before the
// event goes out so that consumers reacting to the event read the new snapshot.
func NewSnapshotPublishers(cache *snapshot.RedisCache, nats *snapshot.NATSNotifier) []snapshot.Publisher {
	var publishers []snapshot.Publisher
	if cache != nil {
		publishers = append(publishers, cache)
	}
	if nats != nil {
		publishers = append(publishers, nats)
	}
	return publishers
}

// NewJobNotifiers contributes the NATS notifier to the job completion notifiers.
func NewJobNotifiers(nats *snapshot.NATSNotifier) []notification.Notifier {
	if nats == nil {
		return nil
	}
	return []notification.Notifier{nats}
}

// ConfigModule provides the configuration and reference resources shared by every command.
var ConfigModule = fx.Options(
	fx.Provide(appconfig.Load),
	fx.Provide(NewJSLDefinitions),
	fx.Provide(NewMigrationFSMap),
)

// PublishModule provides the optional snapshot publishers.
var PublishModule = fx.Options(
	fx.Provide(NewRedisCache),
	fx.Provide(NewNATSNotifier),
	fx.Provide(fx.Annotate(NewSnapshotPublishers, fx.ResultTags(`group:"snapshot_publishers,flatten"`))),
	fx.Provide(fx.Annotate(NewJobNotifiers, fx.ResultTags(`group:"`+notification.NotifierGroup+`,flatten"`))),
)
