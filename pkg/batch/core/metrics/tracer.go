package metrics

import (
	"context"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of job and step execution flows.
type Tracer interface {
	// StartJobSpan starts a Span for a JobExecution.
	//
	// Returns: A context with the new Span set, and a function to end the Span.
	//          It is recommended to call the returned function in a defer statement.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())

	// StartStepSpan starts a Span for a StepExecution, usually as a child of the job span.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())

	// RecordError records an error in the current Span.
	//
	// module: The component where the error occurred (e.g., "reader", "snapshot_publish").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current Span.
	//
	// attributes: e.g. `map[string]interface{}{"rows": 120, "table": "hotspots"}`
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
