package inmemory

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
)

// Module is an Fx module that provides InMemoryJobRepository as a port.JobRepository interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryJobRepository,
			fx.As(new(port.JobRepository)),
		),
	),
)
