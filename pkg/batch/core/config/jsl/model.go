// Package jsl defines the Job Specification Language (JSL) models: batch jobs described declaratively in YAML.
package jsl

import (
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// JSLDefinitionBytes holds the content of a JSL file as a byte slice.
type JSLDefinitionBytes []byte

// Job represents the top-level structure of a JSL file.
type Job struct {
	// ID is the unique identifier for the job. Jobs are launched by ID.
	ID string `yaml:"id"`
	// Name is the logical name of the job.
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Flow        Flow   `yaml:"flow"`
	// Listeners are JobExecutionListener or NotificationListener references applied to this job.
	Listeners []ComponentRef `yaml:"listeners,omitempty"`
}

// Flow defines the execution order of a job.
type Flow struct {
	// StartElement is the ID of the starting element in the flow.
	StartElement string `yaml:"start-element"`
	// Elements maps element IDs to step definitions.
	Elements map[string]Step `yaml:"elements"`
}

// Step represents a single processing unit within a job: chunk-oriented (reader, processor,
// writer, chunk) or tasklet-oriented (tasklet), never both.
type Step struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description,omitempty"`
	Reader      ComponentRef `yaml:"reader,omitempty"`
	Processor   ComponentRef `yaml:"processor,omitempty"`
	Writer      ComponentRef `yaml:"writer,omitempty"`
	Chunk       *Chunk       `yaml:"chunk,omitempty"`
	Tasklet     ComponentRef `yaml:"tasklet,omitempty"`
	// Transitions defines the transition rules from this step.
	Transitions []model.Transition `yaml:"transitions,omitempty"`
	// Listeners are StepExecutionListener references applied to this step.
	Listeners []ComponentRef `yaml:"listeners,omitempty"`
	// ChunkListeners are ChunkListener references applied to this step.
	ChunkListeners            []ComponentRef                   `yaml:"chunk-listeners,omitempty"`
	ExecutionContextPromotion *model.ExecutionContextPromotion `yaml:"execution-context-promotion,omitempty"`
}

// IsChunk reports whether the step is chunk-oriented.
func (s Step) IsChunk() bool {
	return s.Reader.Ref != "" || s.Writer.Ref != ""
}

// ComponentRef refers to a registered component (reader, processor, writer, tasklet, listener).
type ComponentRef struct {
	// Ref is the reference name of the component.
	Ref string `yaml:"ref"`
	// Properties is an optional map of properties injected from JSL.
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Chunk defines the chunk-oriented processing properties for a step.
type Chunk struct {
	// ItemCount specifies the number of items to be processed in a chunk.
	ItemCount int `yaml:"item-count"`
}
