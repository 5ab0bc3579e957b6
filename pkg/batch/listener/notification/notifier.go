// Package notification notifies external parties when a job finishes.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	coreport "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// Notifier delivers a job completion notice.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error
}

// NotifierGroup is the Fx value group collecting additional Notifiers.
const NotifierGroup = "job_notifiers"

// LogNotifier writes the notice to the log.
type LogNotifier struct{}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Message formats the completion notice of execution.
func Message(execution *model.JobExecution) string {
	duration := time.Duration(0)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}
	return fmt.Sprintf(
		"Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.Status,
		execution.ExitStatus,
		duration.Round(time.Millisecond),
		len(execution.Failures),
	)
}

// NotifyJobCompletion logs the notice at INFO for completed jobs and WARN otherwise.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	if execution.Status == model.BatchStatusCompleted {
		logger.Infof("Job Notification: %s", Message(execution))
	} else {
		logger.Warnf("Job Notification: %s", Message(execution))
	}
	return nil
}

var _ Notifier = (*LogNotifier)(nil)

// NotificationListenerImpl sends notices through every configured Notifier.
// A failing notifier does not prevent the others from running.
type NotificationListenerImpl struct {
	notifiers []Notifier
}

// NewNotificationListenerImpl creates a new instance of NotificationListenerImpl.
func NewNotificationListenerImpl(notifiers ...Notifier) *NotificationListenerImpl {
	return &NotificationListenerImpl{notifiers: notifiers}
}

// OnJobCompletion sends the notice. Notifier errors are logged, never returned to the job.
func (l *NotificationListenerImpl) OnJobCompletion(ctx context.Context, jobExecution *model.JobExecution) {
	var result *multierror.Error
	for _, n := range l.notifiers {
		if err := n.NotifyJobCompletion(ctx, jobExecution); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.Warnf("Notification: failed to deliver completion notice for job '%s': %v", jobExecution.JobName, err)
	}
}

var _ coreport.NotificationListener = (*NotificationListenerImpl)(nil)

// NotificationListenerAdapter adapts coreport.NotificationListener to coreport.JobExecutionListener.
type NotificationListenerAdapter struct {
	coreport.NotificationListener
}

// BeforeJob does nothing.
func (a *NotificationListenerAdapter) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
}

// AfterJob calls the NotificationListener's OnJobCompletion.
func (a *NotificationListenerAdapter) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	a.NotificationListener.OnJobCompletion(ctx, jobExecution)
}

var _ coreport.JobExecutionListener = (*NotificationListenerAdapter)(nil)
