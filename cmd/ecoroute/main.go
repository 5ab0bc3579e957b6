package main

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/tigerroll/ecoroute/internal/app"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// embeddedConfig is the application configuration. ${VAR:-default} placeholders are
// expanded from the environment at startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// embeddedJSL defines hotspotSnapshotJob.
//
//go:embed resources/job.yaml
var embeddedJSL []byte

// migrationsFS holds one directory of migrations per database type.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

// embeddedAnchors is the built-in anchor catalog.
//
//go:embed resources/reference/anchors.yaml
var embeddedAnchors []byte

func resources() (app.Resources, error) {
	migrations, err := fs.Sub(migrationsFS, "resources/migrations")
	if err != nil {
		return app.Resources{}, err
	}
	return app.Resources{
		Config:     embeddedConfig,
		JSL:        embeddedJSL,
		Migrations: migrations,
		Anchors:    embeddedAnchors,
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM so a running job can stop between chunks.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func main() {
	var envFilePath string

	rootCmd := &cobra.Command{
		Use:           "ecoroute",
		Short:         "Bin telemetry fusion and hotspot analytics batch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultEnv := os.Getenv("ENV_FILE_PATH")
	if defaultEnv == "" {
		defaultEnv = ".env"
	}
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", defaultEnv, "path of the .env file to load")

	rootCmd.AddCommand(runCmd(&envFilePath))
	rootCmd.AddCommand(previewCmd(&envFilePath))
	rootCmd.AddCommand(reportCmd(&envFilePath))
	rootCmd.AddCommand(validateCmd(&envFilePath))

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func runCmd(envFilePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run hotspotSnapshotJob once and publish the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			res, err := resources()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return app.RunApplication(ctx, *envFilePath, res)
		},
	}
}

func previewCmd(envFilePath *string) *cobra.Command {
	var files app.PreviewFiles

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Assemble a snapshot from local files and print it as JSON without publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := resources()
			if err != nil {
				return err
			}
			return app.RunPreview(*envFilePath, res, files, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&files.Telemetry, "telemetry", "", "telemetry CSV")
	cmd.Flags().StringVar(&files.Geocode, "geocode", "", "primary geocode table (CSV or YAML)")
	cmd.Flags().StringVar(&files.Overrides, "overrides", "", "manual-override geocode table")
	cmd.Flags().StringVar(&files.Anchors, "anchors", "", "anchor catalog (defaults to the built-in catalog)")
	_ = cmd.MarkFlagRequired("telemetry")
	_ = cmd.MarkFlagRequired("geocode")
	return cmd
}

func reportCmd(envFilePath *string) *cobra.Command {
	var opts app.ReportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the published snapshot: campus summary, critical bins and suggested sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := resources()
			if err != nil {
				return err
			}
			return app.RunReport(cmd.Context(), *envFilePath, res, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Campus, "campus", "", "restrict the report to one campus (charles-river, medical, fenway)")
	cmd.Flags().Float64Var(&opts.CriticalPercent, "critical", 85, "fill percent at or above which a bin is critical")
	cmd.Flags().IntVar(&opts.Top, "top", 0, "length of the most-overdue list (0 uses the configured top_n)")
	return cmd
}

func validateCmd(envFilePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, the job definition and the input files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := resources()
			if err != nil {
				return err
			}
			return app.RunValidate(cmd.Context(), *envFilePath, res, cmd.OutOrStdout())
		},
	}
}
