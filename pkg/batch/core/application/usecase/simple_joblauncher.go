// Package usecase holds the application services that start jobs.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// JobCreator builds executable jobs by ID. *support.JobFactory satisfies it.
type JobCreator interface {
	CreateJob(jobID string) (port.Job, error)
}

var _ JobCreator = (*support.JobFactory)(nil)

// SimpleJobLauncher implements port.JobLauncher for local, synchronous execution.
type SimpleJobLauncher struct {
	jobRepository port.JobRepository
	jobFactory    JobCreator
	// activeJobCancellations holds the cancel functions for running jobs.
	activeJobCancellations map[string]context.CancelFunc
	mu                     sync.Mutex
}

// Verify that SimpleJobLauncher implements the port.JobLauncher interface.
var _ port.JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(repo port.JobRepository, factory JobCreator) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:          repo,
		jobFactory:             factory,
		activeJobCancellations: make(map[string]context.CancelFunc),
	}
}

// Stop cancels the running job execution with the given ID. It reports whether the execution was found.
func (l *SimpleJobLauncher) Stop(executionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cancel, ok := l.activeJobCancellations[executionID]
	if ok {
		logger.Infof("Stopping JobExecution (ID: %s).", executionID)
		cancel()
	}
	return ok
}

// Running returns the IDs of the executions currently running.
func (l *SimpleJobLauncher) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.activeJobCancellations))
	for id := range l.activeJobCancellations {
		ids = append(ids, id)
	}
	return ids
}

// Launch builds the job, stores a new JobExecution and runs the job to completion.
//
// The returned error reports a launch failure or the job's own failure; in the latter case the
// returned JobExecution carries the FAILED or STOPPED status and its failures.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	const op = "job_launcher"
	logger.Infof("Launching Job '%s'.", jobName)

	job, err := l.jobFactory.CreateJob(jobName)
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to create job '%s'", jobName), err, false, false)
	}

	if jobParameters.Params == nil {
		jobParameters = model.NewJobParameters()
	}
	jobExecution := model.NewJobExecution(job.JobName(), jobParameters)
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(op, "failed to save JobExecution", err, false, false)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.activeJobCancellations[jobExecution.ID] = cancel
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.activeJobCancellations, jobExecution.ID)
		l.mu.Unlock()
	}()

	runErr := job.Run(jobCtx, jobExecution, jobParameters)
	if runErr != nil && !jobExecution.Status.IsFinished() {
		jobExecution.MarkAsFailed(runErr)
	} else if runErr == nil && !jobExecution.Status.IsFinished() {
		jobExecution.MarkAsCompleted()
	}

	// The final update must survive a cancelled job context.
	if err := l.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); err != nil {
		logger.Errorf("Failed to update final JobExecution (ID: %s) state: %v", jobExecution.ID, err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return jobExecution, runErr
		}
		return jobExecution, exception.NewBatchError(op, fmt.Sprintf("job '%s' finished with status %s", jobName, jobExecution.Status), runErr, false, false)
	}
	return jobExecution, nil
}
