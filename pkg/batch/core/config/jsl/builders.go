package jsl

import (
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
)

// ComponentBuilder is a function type for building a reader, processor, writer or tasklet
// referenced from JSL.
//
// Parameters:
//
//	cfg: The global framework configuration.
//	properties: A map of properties injected from JSL.
//
// Returns:
//
//	The constructed component instance and an error if construction fails.
type ComponentBuilder func(cfg *config.Config, properties map[string]string) (interface{}, error)

// JobExecutionListenerBuilder is a function type for building JobExecutionListeners.
type JobExecutionListenerBuilder func(cfg *config.Config, properties map[string]string) (port.JobExecutionListener, error)

// NotificationListenerBuilder is a function type for building notification listeners.
// The constructed listener satisfies the JobExecutionListener interface; notification
// happens in AfterJob.
type NotificationListenerBuilder func(cfg *config.Config, properties map[string]string) (port.JobExecutionListener, error)

// StepExecutionListenerBuilder is a function type for building StepExecutionListeners.
type StepExecutionListenerBuilder func(cfg *config.Config, properties map[string]string) (port.StepExecutionListener, error)

// ChunkListenerBuilder is a function type for building ChunkListeners.
type ChunkListenerBuilder func(cfg *config.Config, properties map[string]string) (port.ChunkListener, error)
