package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	exception "github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// FlowJob is an implementation of port.Job that executes a job based on a flow defined in JSL.
type FlowJob struct {
	id             string
	name           string
	flow           *model.FlowDefinition
	jobRepository  port.JobRepository
	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// Verify that FlowJob implements the port.Job interface.
var _ port.Job = (*FlowJob)(nil)

// NewFlowJob creates a new instance of FlowJob. Nil recorder and tracer fall back to no-op implementations.
func NewFlowJob(
	id string,
	name string,
	flow *model.FlowDefinition,
	jobRepository port.JobRepository,
	jobListeners []port.JobExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *FlowJob {
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &FlowJob{
		id:             id,
		name:           name,
		flow:           flow,
		jobRepository:  jobRepository,
		jobListeners:   jobListeners,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

// ID returns the job ID.
func (j *FlowJob) ID() string {
	return j.id
}

// JobName returns the job name.
func (j *FlowJob) JobName() string {
	return j.name
}

// GetFlow returns the job flow definition.
func (j *FlowJob) GetFlow() *model.FlowDefinition {
	return j.flow
}

// Run executes the flow from its start element, following transition rules, until the job
// completes, fails or is stopped. The returned error is the cause of a FAILED or STOPPED job.
func (j *FlowJob) Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) (runErr error) {
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, jobExecution.ID)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	if jobExecution.Status == model.BatchStatusStarting {
		jobExecution.MarkAsStarted()
	}
	j.metricRecorder.RecordJobStart(ctx, jobExecution)
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}

	defer func() {
		if jobExecution.EndTime == nil {
			now := time.Now()
			jobExecution.EndTime = &now
		}
		for _, l := range j.jobListeners {
			l.AfterJob(ctx, jobExecution)
		}
		j.metricRecorder.RecordJobEnd(ctx, jobExecution)
		if runErr != nil {
			j.tracer.RecordError(ctx, "job_runner", runErr)
		}
		logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	currentElementID := j.flow.StartElement
	for {
		select {
		case <-ctx.Done():
			logger.Warnf("Context cancelled, interrupting execution of Job '%s': %v", j.name, ctx.Err())
			jobExecution.AddFailureException(ctx.Err())
			jobExecution.MarkAsStopped()
			return ctx.Err()
		default:
		}

		element, ok := j.flow.Elements[currentElementID]
		if !ok {
			err := exception.NewBatchErrorf(j.name, "flow element '%s' not found", currentElementID)
			jobExecution.MarkAsFailed(err)
			return err
		}
		step, ok := element.(port.Step)
		if !ok {
			err := exception.NewBatchErrorf(j.name, "flow element '%s' is not a Step: %T", currentElementID, element)
			jobExecution.MarkAsFailed(err)
			return err
		}

		stepErr := j.executeStep(ctx, jobExecution, step)
		if stepErr != nil && errors.Is(stepErr, context.Canceled) {
			jobExecution.AddFailureException(stepErr)
			jobExecution.MarkAsStopped()
			return stepErr
		}
		se, _ := jobExecution.StepExecutionByName(step.StepName())
		exitStatus := model.ExitStatusFailed
		if se != nil {
			exitStatus = se.ExitStatus
		}

		rule, found := j.flow.GetTransitionRule(step.ID(), exitStatus)
		if !found {
			if stepErr != nil {
				logger.Errorf("Job '%s': step '%s' failed and no transition handles %s. Failing job.", j.name, step.ID(), exitStatus)
				jobExecution.MarkAsFailed(stepErr)
				return stepErr
			}
			logger.Infof("Job '%s': no transition rule from '%s'. Completing job.", j.name, step.ID())
			jobExecution.MarkAsCompleted()
			return nil
		}
		if stepErr != nil {
			// The failure is handled by a transition; keep it on record.
			jobExecution.AddFailureException(stepErr)
		}

		switch {
		case rule.Transition.End:
			logger.Infof("Job '%s': 'end' transition from '%s' on %s. Completing job.", j.name, step.ID(), exitStatus)
			jobExecution.MarkAsCompleted()
			return nil
		case rule.Transition.Fail:
			failErr := exception.NewBatchError(j.name, fmt.Sprintf("explicit fail transition from '%s' on %s", step.ID(), exitStatus), stepErr, false, false)
			logger.Errorf("Job '%s': %v", j.name, failErr)
			jobExecution.MarkAsFailed(failErr)
			return failErr
		default:
			logger.Debugf("Job '%s': transition '%s' -[%s]-> '%s'.", j.name, step.ID(), exitStatus, rule.Transition.To)
			currentElementID = rule.Transition.To
		}
	}
}

// executeStep creates and persists a StepExecution, runs the step and persists the outcome.
func (j *FlowJob) executeStep(ctx context.Context, jobExecution *model.JobExecution, step port.Step) error {
	stepName := step.StepName()
	jobExecution.CurrentStepName = stepName

	stepExecution := model.NewStepExecution(jobExecution, stepName)
	jobExecution.AddStepExecution(stepExecution)
	if j.jobRepository != nil {
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			err = exception.NewBatchError(j.name, "error saving new StepExecution", err, false, false)
			stepExecution.MarkAsFailed(err)
			return err
		}
	}

	err := step.Execute(ctx, jobExecution, stepExecution)
	if err != nil {
		logger.Errorf("Job '%s': error during execution of step '%s': %v", j.name, stepName, err)
	} else {
		logger.Infof("Job '%s': step '%s' completed. ExitStatus: %s", j.name, stepName, stepExecution.ExitStatus)
	}

	if j.jobRepository != nil {
		if uerr := j.jobRepository.UpdateStepExecution(ctx, stepExecution); uerr != nil {
			logger.Errorf("Job '%s': failed to update StepExecution (ID: %s): %v", j.name, stepExecution.ID, uerr)
		}
		if uerr := j.jobRepository.UpdateJobExecution(ctx, jobExecution); uerr != nil {
			logger.Warnf("Job '%s': failed to update JobExecution after step '%s': %v", j.name, stepName, uerr)
		}
	}
	return err
}
