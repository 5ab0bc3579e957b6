// Package tasklet holds the single-shot steps of the hotspot snapshot job.
package tasklet

import (
	"context"
	"io"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/ingest"
	"github.com/tigerroll/ecoroute/internal/step"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
)

// ReferenceLoadTaskletName is the JSL reference of ReferenceLoadTasklet.
const ReferenceLoadTaskletName = "referenceLoadTasklet"

// ReferenceLoadConfig holds the JSL properties of ReferenceLoadTasklet. Unset properties
// fall back to the inputs section of the configuration.
type ReferenceLoadConfig struct {
	StorageRef string `yaml:"storageRef"`
	Geocode    string `yaml:"geocode"`
	Overrides  string `yaml:"overrides"`
	Anchors    string `yaml:"anchors"`
}

// ReferenceLoadTasklet reads the geocode tables and the anchor catalog from storage and
// leaves an engine.Reference in its execution context under step.KeyReference.
type ReferenceLoadTasklet struct {
	props           ReferenceLoadConfig
	storageResolver storage.StorageConnectionResolver
	defaultAnchors  []byte
	ec              model.ExecutionContext
}

var _ port.Tasklet = (*ReferenceLoadTasklet)(nil)

// NewReferenceLoadTasklet creates a ReferenceLoadTasklet.
func NewReferenceLoadTasklet(
	app *appconfig.AppConfig,
	storageResolver storage.StorageConnectionResolver,
	defaultAnchors []byte,
	properties map[string]string,
) (*ReferenceLoadTasklet, error) {
	props := ReferenceLoadConfig{
		StorageRef: app.Inputs.StorageRef,
		Geocode:    app.Inputs.Geocode,
		Overrides:  app.Inputs.Overrides,
		Anchors:    app.Inputs.Anchors,
	}
	if err := configbinder.BindProperties(properties, &props); err != nil {
		return nil, exception.NewBatchError(ReferenceLoadTaskletName, "invalid properties", err, false, false)
	}
	if props.StorageRef == "" || props.Geocode == "" {
		return nil, exception.NewBatchErrorf(ReferenceLoadTaskletName, "storageRef and geocode are required")
	}
	if props.Anchors == "" && len(defaultAnchors) == 0 {
		return nil, exception.NewBatchErrorf(ReferenceLoadTaskletName, "no anchor catalog configured and no built-in catalog available")
	}
	return &ReferenceLoadTasklet{
		props:           props,
		storageResolver: storageResolver,
		defaultAnchors:  defaultAnchors,
		ec:              model.NewExecutionContext(),
	}, nil
}

// Execute implements port.Tasklet.
func (t *ReferenceLoadTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	conn, err := t.storageResolver.ResolveStorageConnection(ctx, t.props.StorageRef)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(ReferenceLoadTaskletName, "failed to resolve storage '"+t.props.StorageRef+"'", err, false, false)
	}
	open := func(name string) (io.ReadCloser, error) {
		return conn.Download(ctx, "", name)
	}
	ref, err := ingest.LoadReference(open, ingest.ReferenceFiles{
		Geocode:   t.props.Geocode,
		Overrides: t.props.Overrides,
		Anchors:   t.props.Anchors,
	}, t.defaultAnchors)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(ReferenceLoadTaskletName, "failed to load reference data", err, false, false)
	}
	t.ec.Put(step.KeyReference, ref)
	return model.ExitStatusCompleted, nil
}

// Close implements port.Tasklet.
func (t *ReferenceLoadTasklet) Close(ctx context.Context) error { return nil }

// SetExecutionContext implements port.Tasklet.
func (t *ReferenceLoadTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

// GetExecutionContext implements port.Tasklet.
func (t *ReferenceLoadTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}
