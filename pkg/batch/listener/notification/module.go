package notification

import (
	"go.uber.org/fx"

	coreport "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// NotifierParams collects the notifiers contributed to the NotifierGroup.
type NotifierParams struct {
	fx.In
	Notifiers []Notifier `group:"job_notifiers"`
}

// NewNotificationJobListenerBuilder creates a builder for the notification listener. The log
// notifier always runs first.
func NewNotificationJobListenerBuilder(p NotifierParams) jsl.NotificationListenerBuilder {
	notifiers := append([]Notifier{NewLogNotifier()}, p.Notifiers...)
	return func(_ *config.Config, _ map[string]string) (coreport.JobExecutionListener, error) {
		return &NotificationListenerAdapter{NotificationListener: NewNotificationListenerImpl(notifiers...)}, nil
	}
}

// NotificationListenerParams defines the dependencies that RegisterNotificationListener receives from Fx.
type NotificationListenerParams struct {
	fx.In
	JobFactory *support.JobFactory
	Builder    jsl.NotificationListenerBuilder `name:"notificationJobListener"`
}

// RegisterNotificationListener registers the notification listener builder with the JobFactory.
func RegisterNotificationListener(p NotificationListenerParams) {
	p.JobFactory.RegisterNotificationListenerBuilder("notificationJobListener", p.Builder)
	logger.Debugf("Notification listener registered with JobFactory.")
}

// Module provides notification-related components.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewNotificationJobListenerBuilder, fx.ResultTags(`name:"notificationJobListener"`))),
	fx.Invoke(RegisterNotificationListener),
)
