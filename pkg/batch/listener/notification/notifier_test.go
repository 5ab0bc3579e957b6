package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

type recordingNotifier struct {
	calls int
	err   error
}

func (n *recordingNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	n.calls++
	return n.err
}

func TestNotificationListener_CallsEveryNotifier(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("broker down")}
	ok := &recordingNotifier{}
	listener := &NotificationListenerAdapter{NotificationListener: NewNotificationListenerImpl(failing, ok)}

	je := model.NewJobExecution("hotspotSnapshotJob", model.NewJobParameters())
	je.MarkAsStarted()
	listener.BeforeJob(context.Background(), je)
	je.MarkAsCompleted()
	listener.AfterJob(context.Background(), je)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestMessage(t *testing.T) {
	je := model.NewJobExecution("hotspotSnapshotJob", model.NewJobParameters())
	je.MarkAsStarted()
	end := je.StartTime.Add(1500 * time.Millisecond)
	je.MarkAsFailed(errors.New("boom"))
	je.EndTime = &end

	msg := Message(je)
	assert.Contains(t, msg, "hotspotSnapshotJob")
	assert.Contains(t, msg, "FAILED")
	assert.Contains(t, msg, "1.5s")
	assert.Contains(t, msg, "Failures: 1")
}
