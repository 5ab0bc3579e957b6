// Package reader holds the item readers of the hotspot snapshot job.
package reader

import (
	"context"
	"io"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/ingest"
	"github.com/tigerroll/ecoroute/internal/step"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// TelemetryReaderName is the JSL reference of TelemetryReader.
const TelemetryReaderName = "telemetryReader"

// readCountKey records how many fused bins were handed out, so a restart skips them.
const readCountKey = TelemetryReaderName + ".readCount"

// TelemetryReaderConfig holds the JSL properties of TelemetryReader.
type TelemetryReaderConfig struct {
	StorageRef string `yaml:"storageRef"`
	Telemetry  string `yaml:"telemetry"`
}

// TelemetryReader downloads the per-stream telemetry export, fuses the waste and recycle
// rows of each serial and returns one *engine.FusedBinMetrics per bin, ordered by serial.
type TelemetryReader struct {
	props           TelemetryReaderConfig
	fusion          engine.FusionConfig
	storageResolver storage.StorageConnectionResolver

	bins  []engine.FusedBinMetrics
	index int
	ec    model.ExecutionContext
}

var _ port.ItemReader[any] = (*TelemetryReader)(nil)

// NewTelemetryReader creates a TelemetryReader.
func NewTelemetryReader(app *appconfig.AppConfig, storageResolver storage.StorageConnectionResolver, properties map[string]string) (*TelemetryReader, error) {
	props := TelemetryReaderConfig{
		StorageRef: app.Inputs.StorageRef,
		Telemetry:  app.Inputs.Telemetry,
	}
	if err := configbinder.BindProperties(properties, &props); err != nil {
		return nil, exception.NewBatchError(TelemetryReaderName, "invalid properties", err, false, false)
	}
	if props.StorageRef == "" || props.Telemetry == "" {
		return nil, exception.NewBatchErrorf(TelemetryReaderName, "storageRef and telemetry are required")
	}
	return &TelemetryReader{
		props:           props,
		fusion:          app.Engine.Fusion,
		storageResolver: storageResolver,
		ec:              model.NewExecutionContext(),
	}, nil
}

// Open downloads and fuses the telemetry file. On restart it resumes after the last bin read.
func (r *TelemetryReader) Open(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		r.ec = ec
	}
	conn, err := r.storageResolver.ResolveStorageConnection(ctx, r.props.StorageRef)
	if err != nil {
		return exception.NewBatchError(TelemetryReaderName, "failed to resolve storage '"+r.props.StorageRef+"'", err, false, false)
	}
	rc, err := conn.Download(ctx, "", r.props.Telemetry)
	if err != nil {
		return exception.NewBatchError(TelemetryReaderName, "failed to download '"+r.props.Telemetry+"'", err, false, true)
	}
	defer rc.Close()

	samples, stats, err := ingest.DecodeTelemetry(rc)
	if err != nil {
		return exception.NewBatchError(TelemetryReaderName, "failed to decode telemetry", err, false, false)
	}
	r.bins = engine.NewStreamFuser(r.fusion).FuseOrdered(samples)
	r.index = 0
	if n, ok := r.ec.GetInt(readCountKey); ok && n > 0 && n <= len(r.bins) {
		r.index = n
		logger.Infof("TelemetryReader: resuming after %d bins.", n)
	}
	r.ec.Put(step.KeyTelemetryStats, stats)
	logger.Infof("TelemetryReader: %d rows, %d samples, %d dropped, %d fused bins.", stats.Rows, stats.Decoded, stats.Dropped(), len(r.bins))
	return nil
}

// Read returns the next fused bin, or io.EOF once every bin was read.
func (r *TelemetryReader) Read(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.index >= len(r.bins) {
		return nil, io.EOF
	}
	bin := r.bins[r.index]
	r.index++
	r.ec.Put(readCountKey, r.index)
	return &bin, nil
}

// Close releases the fused bins.
func (r *TelemetryReader) Close(ctx context.Context) error {
	r.bins = nil
	return nil
}

// SetExecutionContext implements port.ItemReader.
func (r *TelemetryReader) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec
	return nil
}

// GetExecutionContext implements port.ItemReader.
func (r *TelemetryReader) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return r.ec, nil
}
