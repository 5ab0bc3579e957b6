package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/ingest"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// PreviewFiles are local input files for a dry run.
type PreviewFiles struct {
	Telemetry string
	Geocode   string
	Overrides string
	Anchors   string
}

// RunPreview assembles a snapshot in memory from local files and writes it to w as JSON.
// Nothing is persisted or published.
func RunPreview(envFilePath string, res Resources, files PreviewFiles, w io.Writer) error {
	cfg, err := config.LoadConfig(envFilePath, res.Config)
	if err != nil {
		return err
	}
	logger.SetLogLevel(cfg.Ecoroute.System.Logging.Level)
	appCfg, err := appconfig.Load(cfg)
	if err != nil {
		return err
	}
	snap, err := Preview(appCfg.Engine, res.Anchors, files)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Preview loads files and runs the engine over them.
func Preview(opts engine.Options, defaultAnchors []byte, files PreviewFiles) (engine.Snapshot, error) {
	open := func(name string) (io.ReadCloser, error) {
		return os.Open(name)
	}
	ref, err := ingest.LoadReference(open, ingest.ReferenceFiles{
		Geocode:   files.Geocode,
		Overrides: files.Overrides,
		Anchors:   files.Anchors,
	}, defaultAnchors)
	if err != nil {
		return engine.Snapshot{}, err
	}

	f, err := os.Open(files.Telemetry)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("failed to open telemetry: %w", err)
	}
	defer f.Close()
	samples, stats, err := ingest.DecodeTelemetry(f)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("telemetry '%s': %w", files.Telemetry, err)
	}
	logger.Infof("Telemetry: %d rows, %d decoded, %d dropped.", stats.Rows, stats.Decoded, stats.Dropped())

	return engine.NewSnapshotAssembler(opts, ref).Assemble(samples), nil
}
