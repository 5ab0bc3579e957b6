package tasklet

import (
	"context"
	"errors"
	"time"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	exception "github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// TaskletStep is an implementation of port.Step that runs a single Tasklet once.
type TaskletStep struct {
	id                     string
	tasklet                port.Tasklet
	stepExecutionListeners []port.StepExecutionListener
	promotion              *model.ExecutionContextPromotion
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

// Verify that TaskletStep implements the port.Step interface.
var _ port.Step = (*TaskletStep)(nil)

// NewTaskletStep creates a new TaskletStep instance. A tasklet that also implements
// port.StepExecutionListener is registered as a listener.
func NewTaskletStep(
	id string,
	tasklet port.Tasklet,
	stepExecutionListeners []port.StepExecutionListener,
	promotion *model.ExecutionContextPromotion,
) *TaskletStep {
	if l, ok := tasklet.(port.StepExecutionListener); ok {
		stepExecutionListeners = append(stepExecutionListeners, l)
	}
	return &TaskletStep{
		id:                     id,
		tasklet:                tasklet,
		stepExecutionListeners: stepExecutionListeners,
		promotion:              promotion,
		metricRecorder:         metrics.NewNoOpMetricRecorder(),
		tracer:                 metrics.NewNoOpTracer(),
	}
}

// SetMetricRecorder implements port.Step.
func (s *TaskletStep) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

// SetTracer implements port.Step.
func (s *TaskletStep) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

// ID returns the step ID.
func (s *TaskletStep) ID() string {
	return s.id
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.id
}

// GetExecutionContextPromotion implements port.Step.
func (s *TaskletStep) GetExecutionContextPromotion() *model.ExecutionContextPromotion {
	return s.promotion
}

// Execute runs the Tasklet logic.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.id)
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	defer func() {
		for _, l := range s.stepExecutionListeners {
			l.AfterStep(ctx, stepExecution)
		}
		s.metricRecorder.RecordStepEnd(ctx, stepExecution)
	}()

	if err := s.tasklet.SetExecutionContext(ctx, stepExecution.ExecutionContext); err != nil && !errors.Is(err, port.ErrExecutionContextNotSupported) {
		berr := exception.NewBatchError(s.id, "failed to set tasklet execution context", err, false, false)
		stepExecution.MarkAsFailed(berr)
		return berr
	}

	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	start := time.Now()
	exitStatus, execErr := s.tasklet.Execute(ctx, stepExecution)
	s.metricRecorder.RecordDuration(ctx, "tasklet_execute", time.Since(start), map[string]string{"step": s.id})

	if ec, ecErr := s.tasklet.GetExecutionContext(ctx); ecErr == nil && ec != nil {
		for k, v := range ec {
			stepExecution.ExecutionContext.Put(k, v)
		}
	}
	if cerr := s.tasklet.Close(ctx); cerr != nil {
		logger.Warnf("TaskletStep '%s': failed to close tasklet: %v", s.id, cerr)
	}

	if execErr != nil {
		s.tracer.RecordError(ctx, s.id, execErr)
		if errors.Is(execErr, context.Canceled) {
			stepExecution.MarkAsStopped()
		} else {
			stepExecution.MarkAsFailed(execErr)
		}
		logger.Errorf("TaskletStep '%s' failed: %v", s.id, execErr)
		var be *exception.BatchError
		if errors.As(execErr, &be) {
			return execErr
		}
		return exception.NewBatchError(s.id, "tasklet execution failed", execErr, false, false)
	}

	stepExecution.MarkAsCompleted(exitStatus)
	if missing := s.promotion.Promote(stepExecution.ExecutionContext, jobExecution.ExecutionContext); len(missing) > 0 {
		logger.Warnf("TaskletStep '%s': promotion keys not found in step context: %v", s.id, missing)
	}
	logger.Infof("TaskletStep '%s' completed with exit status %s.", s.id, stepExecution.ExitStatus)
	return nil
}
