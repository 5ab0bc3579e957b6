// Package support provides supporting structures and factories for the batch framework,
// including the central JobFactory for constructing batch components and jobs.
package support

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/fx"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	config "github.com/tigerroll/ecoroute/pkg/batch/core/config"
	jsl "github.com/tigerroll/ecoroute/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	runner "github.com/tigerroll/ecoroute/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	item "github.com/tigerroll/ecoroute/pkg/batch/engine/step/item"
	tasklet "github.com/tigerroll/ecoroute/pkg/batch/engine/step/tasklet"
	exception "github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// JobFactory is a central factory for constructing jobs, steps, components and listeners
// from JSL definitions. Builders are registered by reference name and resolved when a job is created.
type JobFactory struct {
	mu                           sync.RWMutex
	config                       *config.Config
	definitions                  *jsl.Definitions
	componentBuilders            map[string]jsl.ComponentBuilder
	jobListenerBuilders          map[string]jsl.JobExecutionListenerBuilder
	notificationListenerBuilders map[string]jsl.NotificationListenerBuilder
	stepListenerBuilders         map[string]jsl.StepExecutionListenerBuilder
	chunkListenerBuilders        map[string]jsl.ChunkListenerBuilder
	jobRepository                port.JobRepository
	metricRecorder               metrics.MetricRecorder
	tracer                       metrics.Tracer
}

// JobFactoryParams defines the parameters that the NewJobFactory function
// receives via dependency injection (Fx).
type JobFactoryParams struct {
	fx.In
	Cfg            *config.Config
	Definitions    *jsl.Definitions
	Repo           port.JobRepository
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewJobFactory creates a new instance of JobFactory.
func NewJobFactory(p JobFactoryParams) *JobFactory {
	return &JobFactory{
		config:                       p.Cfg,
		definitions:                  p.Definitions,
		componentBuilders:            make(map[string]jsl.ComponentBuilder),
		jobListenerBuilders:          make(map[string]jsl.JobExecutionListenerBuilder),
		notificationListenerBuilders: make(map[string]jsl.NotificationListenerBuilder),
		stepListenerBuilders:         make(map[string]jsl.StepExecutionListenerBuilder),
		chunkListenerBuilders:        make(map[string]jsl.ChunkListenerBuilder),
		jobRepository:                p.Repo,
		metricRecorder:               p.MetricRecorder,
		tracer:                       p.Tracer,
	}
}

// GetConfig returns a reference to the Config held by the JobFactory.
func (f *JobFactory) GetConfig() *config.Config {
	return f.config
}

// RegisterComponentBuilder registers a component builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the component.
//	builder: The builder function.
func (f *JobFactory) RegisterComponentBuilder(name string, builder jsl.ComponentBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.componentBuilders[name] = builder
	logger.Debugf("ComponentBuilder '%s' registered with JobFactory.", name)
}

// RegisterJobListenerBuilder registers a JobExecutionListener builder.
func (f *JobFactory) RegisterJobListenerBuilder(name string, builder jsl.JobExecutionListenerBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobListenerBuilders[name] = builder
}

// RegisterNotificationListenerBuilder registers a notification listener builder.
func (f *JobFactory) RegisterNotificationListenerBuilder(name string, builder jsl.NotificationListenerBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notificationListenerBuilders[name] = builder
}

// RegisterStepListenerBuilder registers a StepExecutionListener builder.
func (f *JobFactory) RegisterStepListenerBuilder(name string, builder jsl.StepExecutionListenerBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepListenerBuilders[name] = builder
}

// RegisterChunkListenerBuilder registers a ChunkListener builder.
func (f *JobFactory) RegisterChunkListenerBuilder(name string, builder jsl.ChunkListenerBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkListenerBuilders[name] = builder
}

// ComponentNames returns the registered component reference names, sorted.
func (f *JobFactory) ComponentNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.componentBuilders))
	for name := range f.componentBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildComponent builds the component registered under ref.Ref with ref.Properties.
func (f *JobFactory) BuildComponent(ref jsl.ComponentRef) (interface{}, error) {
	f.mu.RLock()
	builder, ok := f.componentBuilders[ref.Ref]
	f.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "no component builder registered for '%s'", ref.Ref)
	}
	component, err := builder(f.config, ref.Properties)
	if err != nil {
		return nil, exception.NewBatchError("job_factory", fmt.Sprintf("failed to build component '%s'", ref.Ref), err, false, false)
	}
	return component, nil
}

// CreateJob builds an executable job from the JSL definition with the given ID.
//
// Parameters:
//
//	jobID: The ID of a loaded JSL job definition.
//
// Returns:
//
//	The constructed port.Job and an error if any reference cannot be resolved.
func (f *JobFactory) CreateJob(jobID string) (port.Job, error) {
	def, ok := f.definitions.Get(jobID)
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "job definition '%s' not found", jobID)
	}
	if err := jsl.Validate(def); err != nil {
		return nil, err
	}

	flow := model.NewFlowDefinition(def.Flow.StartElement)
	ids := make([]string, 0, len(def.Flow.Elements))
	for id := range def.Flow.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		stepDef := def.Flow.Elements[id]
		step, err := f.buildStep(id, stepDef)
		if err != nil {
			return nil, err
		}
		step.SetMetricRecorder(f.metricRecorder)
		step.SetTracer(f.tracer)
		if err := flow.AddElement(id, step); err != nil {
			return nil, exception.NewBatchError("job_factory", "invalid flow", err, false, false)
		}
		for _, t := range stepDef.Transitions {
			flow.AddTransitionRule(id, t)
		}
	}

	listeners, err := f.buildJobListeners(def.Listeners)
	if err != nil {
		return nil, err
	}

	logger.Debugf("JobFactory: built job '%s' with %d steps and %d listeners.", def.ID, len(ids), len(listeners))
	return runner.NewFlowJob(def.ID, def.Name, flow, f.jobRepository, listeners, f.metricRecorder, f.tracer), nil
}

func (f *JobFactory) buildStep(id string, def jsl.Step) (port.Step, error) {
	stepListeners, err := f.buildStepListeners(def.Listeners)
	if err != nil {
		return nil, err
	}

	if !def.IsChunk() {
		component, err := f.BuildComponent(def.Tasklet)
		if err != nil {
			return nil, err
		}
		t, ok := component.(port.Tasklet)
		if !ok {
			return nil, exception.NewBatchErrorf("job_factory", "component '%s' of step '%s' is %T, not a Tasklet", def.Tasklet.Ref, id, component)
		}
		return tasklet.NewTaskletStep(id, t, stepListeners, def.ExecutionContextPromotion), nil
	}

	chunkListeners, err := f.buildChunkListeners(def.ChunkListeners)
	if err != nil {
		return nil, err
	}

	readerComponent, err := f.BuildComponent(def.Reader)
	if err != nil {
		return nil, err
	}
	reader, ok := readerComponent.(port.ItemReader[any])
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "component '%s' of step '%s' is %T, not an ItemReader", def.Reader.Ref, id, readerComponent)
	}

	var processor port.ItemProcessor[any, any]
	if def.Processor.Ref != "" {
		processorComponent, err := f.BuildComponent(def.Processor)
		if err != nil {
			return nil, err
		}
		processor, ok = processorComponent.(port.ItemProcessor[any, any])
		if !ok {
			return nil, exception.NewBatchErrorf("job_factory", "component '%s' of step '%s' is %T, not an ItemProcessor", def.Processor.Ref, id, processorComponent)
		}
	}

	writerComponent, err := f.BuildComponent(def.Writer)
	if err != nil {
		return nil, err
	}
	writer, ok := writerComponent.(port.ItemWriter[any])
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "component '%s' of step '%s' is %T, not an ItemWriter", def.Writer.Ref, id, writerComponent)
	}

	chunkSize := 0
	if def.Chunk != nil {
		chunkSize = def.Chunk.ItemCount
	}
	if chunkSize <= 0 && f.config != nil {
		chunkSize = f.config.Ecoroute.Batch.ChunkSize
	}
	return item.NewChunkStep(id, reader, processor, writer, chunkSize, stepListeners, chunkListeners, def.ExecutionContextPromotion), nil
}

func (f *JobFactory) buildJobListeners(refs []jsl.ComponentRef) ([]port.JobExecutionListener, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	listeners := make([]port.JobExecutionListener, 0, len(refs))
	for _, ref := range refs {
		var (
			l   port.JobExecutionListener
			err error
		)
		if b, ok := f.jobListenerBuilders[ref.Ref]; ok {
			l, err = b(f.config, ref.Properties)
		} else if b, ok := f.notificationListenerBuilders[ref.Ref]; ok {
			l, err = b(f.config, ref.Properties)
		} else {
			return nil, exception.NewBatchErrorf("job_factory", "no job listener builder registered for '%s'", ref.Ref)
		}
		if err != nil {
			return nil, exception.NewBatchError("job_factory", fmt.Sprintf("failed to build job listener '%s'", ref.Ref), err, false, false)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func (f *JobFactory) buildStepListeners(refs []jsl.ComponentRef) ([]port.StepExecutionListener, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	listeners := make([]port.StepExecutionListener, 0, len(refs))
	for _, ref := range refs {
		b, ok := f.stepListenerBuilders[ref.Ref]
		if !ok {
			return nil, exception.NewBatchErrorf("job_factory", "no step listener builder registered for '%s'", ref.Ref)
		}
		l, err := b(f.config, ref.Properties)
		if err != nil {
			return nil, exception.NewBatchError("job_factory", fmt.Sprintf("failed to build step listener '%s'", ref.Ref), err, false, false)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func (f *JobFactory) buildChunkListeners(refs []jsl.ComponentRef) ([]port.ChunkListener, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	listeners := make([]port.ChunkListener, 0, len(refs))
	for _, ref := range refs {
		b, ok := f.chunkListenerBuilders[ref.Ref]
		if !ok {
			return nil, exception.NewBatchErrorf("job_factory", "no chunk listener builder registered for '%s'", ref.Ref)
		}
		l, err := b(f.config, ref.Properties)
		if err != nil {
			return nil, exception.NewBatchError("job_factory", fmt.Sprintf("failed to build chunk listener '%s'", ref.Ref), err, false, false)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
