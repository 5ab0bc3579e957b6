// Package snapshot stores the published analytics snapshot and fans it out to the optional
// cache and event publishers.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/ecoroute/internal/domain/entity"
	"github.com/tigerroll/ecoroute/internal/engine"
)

// ErrNoSnapshot is returned by reads when nothing has been published yet.
var ErrNoSnapshot = errors.New("no snapshot has been published")

// DefaultInsertBatchSize bounds the rows per INSERT statement.
const DefaultInsertBatchSize = 200

// Published is a snapshot as read back from the tables.
type Published struct {
	Meta      entity.SnapshotMeta
	Hotspots  []engine.HotspotRecord
	Suggested map[engine.Campus][]engine.SuggestedSite
	Summary   engine.Summary
}

// Repository reads and replaces the snapshot tables.
type Repository struct {
	db        *gorm.DB
	batchSize int
}

// NewRepository creates a Repository over db. A non-positive batchSize uses DefaultInsertBatchSize.
func NewRepository(db *gorm.DB, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &Repository{db: db, batchSize: batchSize}
}

// Replace swaps the whole snapshot in one transaction: every table is emptied and refilled,
// so a reader sees either the previous snapshot or the new one.
func (r *Repository) Replace(ctx context.Context, meta entity.SnapshotMeta, hotspots []entity.Hotspot, sites []entity.SuggestedSite) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []interface{}{&entity.Hotspot{}, &entity.SuggestedSite{}, &entity.SnapshotMeta{}} {
			if err := global.Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", model, err)
			}
		}
		if len(hotspots) > 0 {
			if err := tx.CreateInBatches(hotspots, r.batchSize).Error; err != nil {
				return fmt.Errorf("failed to insert %d hotspots: %w", len(hotspots), err)
			}
		}
		if len(sites) > 0 {
			if err := tx.CreateInBatches(sites, r.batchSize).Error; err != nil {
				return fmt.Errorf("failed to insert %d suggested sites: %w", len(sites), err)
			}
		}
		if err := tx.Create(&meta).Error; err != nil {
			return fmt.Errorf("failed to insert snapshot meta: %w", err)
		}
		return nil
	})
}

// Meta returns the metadata of the current snapshot.
func (r *Repository) Meta(ctx context.Context) (entity.SnapshotMeta, error) {
	var meta entity.SnapshotMeta
	err := r.db.WithContext(ctx).Order("generated_at DESC").Limit(1).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return meta, ErrNoSnapshot
	}
	return meta, err
}

// Hotspots returns the current records ordered by serial. A non-empty campus filters them.
func (r *Repository) Hotspots(ctx context.Context, campus engine.Campus) ([]engine.HotspotRecord, error) {
	var rows []entity.Hotspot
	q := r.db.WithContext(ctx).Order("serial")
	if campus != engine.CampusUnresolved {
		q = q.Where("campus = ?", string(campus))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.HotspotRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Record())
	}
	return out, nil
}

// SuggestedSites returns the current suggested sites per campus in catalog order.
// A non-empty campus filters them.
func (r *Repository) SuggestedSites(ctx context.Context, campus engine.Campus) (map[engine.Campus][]engine.SuggestedSite, error) {
	var rows []entity.SuggestedSite
	q := r.db.WithContext(ctx).Order("campus").Order("position")
	if campus != engine.CampusUnresolved {
		q = q.Where("campus = ?", string(campus))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[engine.Campus][]engine.SuggestedSite)
	for _, row := range rows {
		site := row.Site()
		out[site.Campus] = append(out[site.Campus], site)
	}
	return out, nil
}

// Load reads the full current snapshot.
func (r *Repository) Load(ctx context.Context) (*Published, error) {
	meta, err := r.Meta(ctx)
	if err != nil {
		return nil, err
	}
	hotspots, err := r.Hotspots(ctx, engine.CampusUnresolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read hotspots: %w", err)
	}
	suggested, err := r.SuggestedSites(ctx, engine.CampusUnresolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read suggested sites: %w", err)
	}
	p := &Published{Meta: meta, Hotspots: hotspots, Suggested: suggested}
	if meta.SummaryJSON != "" {
		if err := json.Unmarshal([]byte(meta.SummaryJSON), &p.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot summary: %w", err)
		}
	}
	return p, nil
}
