// Package step holds the execution context keys shared by the hotspot snapshot job's
// components. The components themselves live in the reader, processor, writer and tasklet
// sub-packages.
package step

import (
	"fmt"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// Keys of the values handed from one step to the next through the job execution context.
const (
	// KeyReference holds the engine.Reference loaded by referenceLoadTasklet.
	KeyReference = "ecoroute.reference"
	// KeyHotspots holds the []engine.HotspotRecord staged by hotspotStagingWriter.
	KeyHotspots = "ecoroute.hotspots"
	// KeySnapshot holds the engine.Snapshot assembled by coverageGapTasklet.
	KeySnapshot = "ecoroute.snapshot"
	// KeyTelemetryStats holds the ingest.TelemetryStats of the telemetry file.
	KeyTelemetryStats = "ecoroute.telemetry_stats"
	// KeyRunID holds the id of the snapshot committed by snapshotPublishTasklet.
	KeyRunID = "ecoroute.run_id"
	// KeyGeneratedAt holds the commit time of that snapshot.
	KeyGeneratedAt = "ecoroute.generated_at"
	// KeyExportedFiles holds the object names written by parquetExportTasklet.
	KeyExportedFiles = "ecoroute.exported_files"
)

// FromJob reads a typed value an earlier step promoted into the job execution context.
func FromJob[T any](se *model.StepExecution, key string) (T, error) {
	var zero T
	if se == nil || se.JobExecution == nil {
		return zero, fmt.Errorf("no job execution is attached to the step")
	}
	raw, ok := se.JobExecution.ExecutionContext.Get(key)
	if !ok {
		return zero, fmt.Errorf("job execution context has no '%s'", key)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("job execution context value '%s' is %T, want %T", key, raw, zero)
	}
	return v, nil
}
