// Package port defines the core interfaces (ports) for the batch application.
// These interfaces abstract the application's capabilities and dependencies,
// allowing for flexible implementation and testing.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
)

// ErrExecutionContextNotSupported is returned when a component does not support getting or setting ExecutionContext.
var ErrExecutionContextNotSupported = errors.New("execution context not supported by this component")

// Job is the interface for an executable batch job. It defines the entire job flow.
type Job interface {
	// Run executes the entire job flow, updating jobExecution as it goes.
	//
	// Returns:
	//   error: An error if the job execution fails.
	Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error
	// JobName returns the logical name of the job.
	JobName() string
	// ID returns the unique identifier of the job definition.
	ID() string
	// GetFlow returns the flow definition of the job.
	GetFlow() *model.FlowDefinition
}

// Step is a single element of a job flow.
type Step interface {
	// Execute runs the step. The StepExecution is created by the caller and is updated in place.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The JobExecution to which this step belongs.
	//   stepExecution: The StepExecution of this run.
	//
	// Returns:
	//   error: An error if the step fails. The step status is FAILED in that case.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	// StepName returns the logical name of the step.
	StepName() string
	// ID returns the flow element identifier of the step.
	ID() string
	// SetMetricRecorder sets the MetricRecorder used by the step.
	SetMetricRecorder(recorder metrics.MetricRecorder)
	// SetTracer sets the Tracer used by the step.
	SetTracer(tracer metrics.Tracer)
	// GetExecutionContextPromotion returns the promotion settings, or nil.
	GetExecutionContextPromotion() *model.ExecutionContextPromotion
}

// ItemReader reads items one at a time. O is the type of item to be read.
// Read returns io.EOF when there are no more items.
type ItemReader[O any] interface {
	// Open prepares the reader. ec is the step ExecutionContext.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or io.EOF.
	Read(ctx context.Context) (O, error)
	// Close releases the reader's resources.
	Close(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ItemProcessor transforms an item. I is the type of input item, O is the type of output item.
// Returning a nil output (for pointer types) or ErrFilterItem filters the item out of the chunk.
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ErrFilterItem is returned by an ItemProcessor to drop the current item without failing the step.
var ErrFilterItem = errors.New("item filtered")

// ItemWriter writes a chunk of items. I is the type of item to be written.
type ItemWriter[I any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write writes the chunk. An error fails the step.
	Write(ctx context.Context, items []I) error
	Close(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// Tasklet is a single unit of work executed once by a tasklet step.
type Tasklet interface {
	// Execute performs the work and returns the exit status of the step.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
	Close(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// NotificationListener is notified once a job has finished, successfully or not.
type NotificationListener interface {
	OnJobCompletion(ctx context.Context, jobExecution *model.JobExecution)
}

// StepExecutionListener is called around each step execution.
type StepExecutionListener interface {
	// BeforeStep is called after the step is marked STARTED and before any work is done.
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	// AfterStep is called once the step status is final.
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener is called around each chunk of a chunk-oriented step.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
}

// JobExecutionListener is called around each job execution.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

type contextKey string

const stepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution stores a StepExecution in the Context.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, stepExecutionKey, se)
}

// GetStepExecutionFromContext retrieves a StepExecution from the Context. Returns nil if not found.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(stepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
