package app

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/ecoroute/internal/step/processor"
	"github.com/tigerroll/ecoroute/internal/step/reader"
	"github.com/tigerroll/ecoroute/internal/step/tasklet"
	"github.com/tigerroll/ecoroute/internal/step/writer"
	gormadapter "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	"github.com/tigerroll/ecoroute/pkg/batch/component/tasklet/migration"
	usecase "github.com/tigerroll/ecoroute/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	infraMetrics "github.com/tigerroll/ecoroute/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/ecoroute/pkg/batch/infrastructure/repository/inmemory"
	batchlistener "github.com/tigerroll/ecoroute/pkg/batch/listener"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// ParamLaunchedAt is the job parameter carrying the launch time.
const ParamLaunchedAt = "launchedAt"

// baseOptions supplies the embedded resources and provides the configuration.
func baseOptions(envFilePath string, res Resources) []fx.Option {
	return []fx.Option{
		fx.Supply(
			res.Config,
			res.JSL,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(res.Migrations, fx.As(new(fs.FS)), fx.ResultTags(`name:"applicationMigrationsFS"`)),
			fx.Annotate(res.Anchors, fx.ResultTags(`name:"defaultAnchors"`)),
		),
		logger.Module,
		config.Module,
		ConfigModule,
	}
}

// runtimeOptions is the full batch runtime with every component of hotspotSnapshotJob
// registered with the JobFactory.
func runtimeOptions(envFilePath string, res Resources) []fx.Option {
	return append(baseOptions(envFilePath, res),
		fx.Options(DBProviderOptions()...),
		fx.Options(StorageProviderOptions()...),
		metrics.Module,
		infraMetrics.Module,
		support.Module,
		usecase.Module,
		inmemory.Module,
		batchlistener.Module,
		gormadapter.Module,
		storage.Module,
		migration.Module,
		PublishModule,

		reader.Module,
		processor.Module,
		writer.Module,
		tasklet.Module,
	)
}

// jobOutcome is filled in by the launch goroutine before it requests shutdown.
type jobOutcome struct {
	execution *model.JobExecution
	err       error
}

// RunApplication runs the configured job once and returns when the application has
// stopped. A job that does not complete is reported as an error.
func RunApplication(appCtx context.Context, envFilePath string, res Resources) error {
	outcome := &jobOutcome{}
	app := fx.New(append(runtimeOptions(envFilePath, res),
		fx.Supply(fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`))),
		fx.Supply(outcome),
		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // jobLauncher *usecase.SimpleJobLauncher
			"",              // cfg *config.Config
			"",              // outcome *jobOutcome
			`name:"appCtx"`, // appCtx context.Context
		))),
	)...)
	if err := app.Err(); err != nil {
		return fmt.Errorf("application setup failed: %w", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("application start failed: %w", err)
	}

	<-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warnf("Application stop reported an error: %v", err)
	}
	return outcome.result()
}

func (o *jobOutcome) result() error {
	if o.err != nil {
		return o.err
	}
	if o.execution == nil {
		return exception.NewBatchErrorf("app", "the job did not run")
	}
	if o.execution.Status != model.BatchStatusCompleted {
		return exception.NewBatchErrorf("app", "job '%s' (execution %s) finished with status %s: %v",
			o.execution.JobName, o.execution.ID, o.execution.Status, o.execution.Failures)
	}
	return nil
}

// startJobExecution is invoked by Fx to begin the batch job execution.
func startJobExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	jobLauncher *usecase.SimpleJobLauncher,
	cfg *config.Config,
	outcome *jobOutcome,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartJobExecution(jobLauncher, cfg, shutdowner, outcome, appCtx),
		OnStop:  onStopApplication(),
	})
}

// onStartJobExecution launches the job on its own goroutine so that OnStart returns
// immediately, then requests shutdown once the job has finished.
func onStartJobExecution(
	jobLauncher *usecase.SimpleJobLauncher,
	cfg *config.Config,
	shutdowner fx.Shutdowner,
	outcome *jobOutcome,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			exitCode := 0
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in job execution: %v", r)
					outcome.err = fmt.Errorf("job execution panicked: %v", r)
					exitCode = 1
				}
				logger.Infof("Requesting application shutdown after job completion.")
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			jobName := cfg.Ecoroute.Batch.JobName
			logger.Infof("Starting job '%s'...", jobName)

			params := model.NewJobParameters()
			params.Put(ParamLaunchedAt, time.Now().UTC().Format(time.RFC3339))

			execution, err := jobLauncher.Launch(appCtx, jobName, params)
			outcome.execution = execution
			if err != nil {
				logger.Errorf("Job '%s' failed: %v", jobName, err)
				outcome.err = err
				exitCode = 1
				return
			}
			logger.Infof("Job '%s' (execution %s) finished with status %s, exit status %s.",
				jobName, execution.ID, execution.Status, execution.ExitStatus)
			if execution.Status != model.BatchStatusCompleted {
				exitCode = 1
			}
		}()
		return nil
	}
}

// onStopApplication logs application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}
