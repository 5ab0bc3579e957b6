package usecase

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	support "github.com/tigerroll/ecoroute/pkg/batch/core/config/support"
)

// Module is the Fx module for the JobLauncher.
var Module = fx.Options(
	fx.Provide(func(repo port.JobRepository, factory *support.JobFactory) *SimpleJobLauncher {
		return NewSimpleJobLauncher(repo, factory)
	}),
	fx.Provide(func(launcher *SimpleJobLauncher) port.JobLauncher { return launcher }),
)
