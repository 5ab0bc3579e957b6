package app

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/ingest"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
)

// RunValidate checks that the configuration decodes, that the job definition builds with
// every component it references, and that the inputs on the configured storage can be
// read. Each finding is written to w; all problems are returned together.
func RunValidate(ctx context.Context, envFilePath string, res Resources, w io.Writer) error {
	var (
		cfg      *config.Config
		appCfg   *appconfig.AppConfig
		factory  *support.JobFactory
		resolver storage.StorageConnectionResolver
	)
	app := fx.New(append(runtimeOptions(envFilePath, res),
		fx.Populate(&cfg, &appCfg, &factory, &resolver),
	)...)
	if err := app.Err(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	fmt.Fprintln(w, "configuration: ok")

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(context.Background())

	var result *multierror.Error
	jobName := cfg.Ecoroute.Batch.JobName
	if _, err := factory.CreateJob(jobName); err != nil {
		result = multierror.Append(result, fmt.Errorf("job '%s': %w", jobName, err))
	} else {
		fmt.Fprintf(w, "job '%s': ok\n", jobName)
	}

	conn, err := resolver.ResolveStorageConnection(ctx, appCfg.Inputs.StorageRef)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("inputs storage '%s': %w", appCfg.Inputs.StorageRef, err))
		return result.ErrorOrNil()
	}
	open := func(name string) (io.ReadCloser, error) {
		return conn.Download(ctx, "", name)
	}

	ref, err := ingest.LoadReference(open, ingest.ReferenceFiles{
		Geocode:   appCfg.Inputs.Geocode,
		Overrides: appCfg.Inputs.Overrides,
		Anchors:   appCfg.Inputs.Anchors,
	}, res.Anchors)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("reference data: %w", err))
	} else {
		fmt.Fprintf(w, "reference data: ok (%d locations, %d overrides, %d anchors)\n",
			ref.Primary.Len(), ref.Overrides.Len(), ref.Anchors.Len())
	}

	rc, err := open(appCfg.Inputs.Telemetry)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("telemetry '%s': %w", appCfg.Inputs.Telemetry, err))
		return result.ErrorOrNil()
	}
	defer rc.Close()
	_, stats, err := ingest.DecodeTelemetry(rc)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("telemetry '%s': %w", appCfg.Inputs.Telemetry, err))
	} else {
		fmt.Fprintf(w, "telemetry: ok (%d rows, %d decoded, %d dropped)\n", stats.Rows, stats.Decoded, stats.Dropped())
	}
	return result.ErrorOrNil()
}
