package jsl

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// Definitions holds loaded JSL job definitions keyed by job ID.
type Definitions struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewDefinitions creates an empty definition set.
func NewDefinitions() *Definitions {
	return &Definitions{jobs: make(map[string]Job)}
}

// LoadFromBytes parses and validates one JSL YAML document and adds it to the set.
func (d *Definitions) LoadFromBytes(data []byte) error {
	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return exception.NewBatchError("jsl_loader", "Failed to parse JSL file", err, false, false)
	}
	if err := Validate(jobDef); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.jobs[jobDef.ID]; exists {
		return exception.NewBatchErrorf("jsl_loader", "JSL Job ID '%s' is duplicated", jobDef.ID)
	}
	d.jobs[jobDef.ID] = jobDef
	logger.Infof("Loaded JSL job '%s' (%d elements).", jobDef.ID, len(jobDef.Flow.Elements))
	return nil
}

// Get retrieves a JSL Job definition by its ID.
func (d *Definitions) Get(jobID string) (Job, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	job, ok := d.jobs[jobID]
	return job, ok
}

// IDs returns the loaded job IDs in sorted order.
func (d *Definitions) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.jobs))
	for id := range d.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the structural rules of a job definition: required identifiers, a start
// element that exists, steps that are either chunk or tasklet oriented, and transitions that
// point at existing elements.
func Validate(job Job) error {
	if job.ID == "" {
		return exception.NewBatchErrorf("jsl_loader", "'id' is not defined in JSL file")
	}
	if job.Name == "" {
		return exception.NewBatchErrorf("jsl_loader", "JSL job '%s' does not have 'name' defined", job.ID)
	}
	if job.Flow.StartElement == "" {
		return exception.NewBatchErrorf("jsl_loader", "JSL job '%s' flow does not have 'start-element' defined", job.ID)
	}
	if len(job.Flow.Elements) == 0 {
		return exception.NewBatchErrorf("jsl_loader", "JSL job '%s' flow does not have 'elements' defined", job.ID)
	}
	if _, ok := job.Flow.Elements[job.Flow.StartElement]; !ok {
		return exception.NewBatchErrorf("jsl_loader", "JSL job '%s' start-element '%s' is not a flow element", job.ID, job.Flow.StartElement)
	}

	for id, step := range job.Flow.Elements {
		if err := validateStep(id, step, job.Flow.Elements); err != nil {
			return exception.NewBatchError("jsl_loader", fmt.Sprintf("JSL job '%s'", job.ID), err, false, false)
		}
	}
	return nil
}

func validateStep(id string, step Step, elements map[string]Step) error {
	hasTasklet := step.Tasklet.Ref != ""
	switch {
	case step.IsChunk() && hasTasklet:
		return fmt.Errorf("step '%s' defines both chunk components and a tasklet", id)
	case step.IsChunk() && (step.Reader.Ref == "" || step.Writer.Ref == ""):
		return fmt.Errorf("chunk step '%s' requires both a reader and a writer", id)
	case !step.IsChunk() && !hasTasklet:
		return fmt.Errorf("step '%s' defines neither chunk components nor a tasklet", id)
	}
	for _, t := range step.Transitions {
		if t.On == "" {
			return fmt.Errorf("step '%s' has a transition without 'on'", id)
		}
		if t.To == "" && !t.End && !t.Fail {
			return fmt.Errorf("step '%s' transition on '%s' needs 'to', 'end' or 'fail'", id, t.On)
		}
		if t.To != "" {
			if _, ok := elements[t.To]; !ok {
				return fmt.Errorf("step '%s' transition on '%s' targets unknown element '%s'", id, t.On, t.To)
			}
		}
	}
	return nil
}
