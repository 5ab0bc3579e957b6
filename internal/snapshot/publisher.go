package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// PublisherGroup is the Fx value group collecting the enabled Publishers.
const PublisherGroup = "snapshot_publishers"

// Document is the snapshot as handed to publishers once the tables are committed.
type Document struct {
	RunID          string                                   `json:"run_id"`
	JobExecutionID string                                   `json:"job_execution_id"`
	GeneratedAt    time.Time                                `json:"generated_at"`
	Hotspots       []engine.HotspotRecord                   `json:"hotspots"`
	Suggested      map[engine.Campus][]engine.SuggestedSite `json:"suggested"`
	Summary        engine.Summary                           `json:"summary"`
}

// NewDocument builds the document of a committed snapshot.
func NewDocument(meta entity.SnapshotMeta, snap engine.Snapshot) *Document {
	return &Document{
		RunID:          meta.RunID,
		JobExecutionID: meta.JobExecutionID,
		GeneratedAt:    meta.GeneratedAt,
		Hotspots:       snap.Hotspots,
		Suggested:      snap.Suggested,
		Summary:        snap.Summary,
	}
}

// Publisher pushes a committed snapshot to a downstream system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, doc *Document) error
}

// PublishAll runs every publisher, even after a failure, and returns the combined error.
func PublishAll(ctx context.Context, publishers []Publisher, doc *Document) error {
	var result *multierror.Error
	for _, p := range publishers {
		start := time.Now()
		if err := p.Publish(ctx, doc); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		logger.Infof("Snapshot %s published to %s in %s.", doc.RunID, p.Name(), time.Since(start).Round(time.Millisecond))
	}
	return result.ErrorOrNil()
}
