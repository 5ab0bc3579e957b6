// Package listener aggregates the job, step and chunk listeners of the batch framework.
package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/ecoroute/pkg/batch/listener/logging"
	"github.com/tigerroll/ecoroute/pkg/batch/listener/notification"
)

// Module aggregates all listener modules of the batch framework.
var Module = fx.Options(
	logging.Module,
	notification.Module,
)
