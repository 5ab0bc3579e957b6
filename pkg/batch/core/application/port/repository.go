package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// JobRepository stores job and step executions.
type JobRepository interface {
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error)
	// FindLatestJobExecution returns the most recently created execution of jobName.
	FindLatestJobExecution(ctx context.Context, jobName string) (*model.JobExecution, error)
	SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
}

// JobLauncher starts job executions.
type JobLauncher interface {
	// Launch runs the named job synchronously and returns its final JobExecution.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// ErrJobExecutionNotFound is returned when no JobExecution matches a lookup.
var ErrJobExecutionNotFound = errors.New("job execution not found")

// ErrStepExecutionNotFound is returned when no StepExecution matches a lookup.
var ErrStepExecutionNotFound = errors.New("step execution not found")
