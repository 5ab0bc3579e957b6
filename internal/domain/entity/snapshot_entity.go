// Package entity holds the persisted form of the analytics snapshot. The same structs map to
// the snapshot tables through gorm and to the exported Parquet files through parquet-go.
package entity

import (
	"time"

	"github.com/tigerroll/ecoroute/internal/engine"
)

// Hotspot is one row of the hotspots table.
type Hotspot struct {
	Serial             string   `gorm:"column:serial;primaryKey" parquet:"name=serial, type=BYTE_ARRAY, convertedtype=UTF8"`
	RunID              string   `gorm:"column:run_id;not null" parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Description        string   `gorm:"column:description" parquet:"name=description, type=BYTE_ARRAY, convertedtype=UTF8"`
	Lat                *float64 `gorm:"column:lat" parquet:"name=lat, type=DOUBLE, repetitiontype=OPTIONAL"`
	Lng                *float64 `gorm:"column:lng" parquet:"name=lng, type=DOUBLE, repetitiontype=OPTIONAL"`
	Zip                string   `gorm:"column:zip" parquet:"name=zip, type=BYTE_ARRAY, convertedtype=UTF8"`
	Campus             *string  `gorm:"column:campus" parquet:"name=campus, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	WasteDaysToFill    *float64 `gorm:"column:waste_days_to_fill" parquet:"name=waste_days_to_fill, type=DOUBLE, repetitiontype=OPTIONAL"`
	WasteFillPercent   *float64 `gorm:"column:waste_fill_percent" parquet:"name=waste_fill_percent, type=DOUBLE, repetitiontype=OPTIONAL"`
	WasteDaysTo80      *float64 `gorm:"column:waste_days_to_80" parquet:"name=waste_days_to_80, type=DOUBLE, repetitiontype=OPTIONAL"`
	RecycleDaysToFill  *float64 `gorm:"column:recycle_days_to_fill" parquet:"name=recycle_days_to_fill, type=DOUBLE, repetitiontype=OPTIONAL"`
	RecycleFillPercent *float64 `gorm:"column:recycle_fill_percent" parquet:"name=recycle_fill_percent, type=DOUBLE, repetitiontype=OPTIONAL"`
	RecycleDaysTo80    *float64 `gorm:"column:recycle_days_to_80" parquet:"name=recycle_days_to_80, type=DOUBLE, repetitiontype=OPTIONAL"`
	HotspotScore       float64  `gorm:"column:hotspot_score" parquet:"name=hotspot_score, type=DOUBLE"`
	PlacementStatus    string   `gorm:"column:placement_status" parquet:"name=placement_status, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// TableName specifies the table name for Hotspot.
func (Hotspot) TableName() string {
	return "hotspots"
}

// SuggestedSite is one row of the suggested_sites table. Position keeps the catalog order
// of the anchor within its campus.
type SuggestedSite struct {
	Campus           string   `gorm:"column:campus;primaryKey" parquet:"name=campus, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position         int32    `gorm:"column:position;primaryKey" parquet:"name=position, type=INT32"`
	RunID            string   `gorm:"column:run_id;not null" parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name             string   `gorm:"column:name" parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Lat              float64  `gorm:"column:lat" parquet:"name=lat, type=DOUBLE"`
	Lng              float64  `gorm:"column:lng" parquet:"name=lng, type=DOUBLE"`
	Reason           string   `gorm:"column:reason" parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlacementStatus  string   `gorm:"column:placement_status" parquet:"name=placement_status, type=BYTE_ARRAY, convertedtype=UTF8"`
	NearestBinMeters *float64 `gorm:"column:nearest_bin_meters" parquet:"name=nearest_bin_meters, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// TableName specifies the table name for SuggestedSite.
func (SuggestedSite) TableName() string {
	return "suggested_sites"
}

// SnapshotMeta describes the snapshot currently held by the tables. The table has one row.
type SnapshotMeta struct {
	RunID          string    `gorm:"column:run_id;primaryKey"`
	JobExecutionID string    `gorm:"column:job_execution_id"`
	GeneratedAt    time.Time `gorm:"column:generated_at"`
	BinCount       int       `gorm:"column:bin_count"`
	ResolvedCount  int       `gorm:"column:resolved_count"`
	SuggestedCount int       `gorm:"column:suggested_count"`
	// SummaryJSON is the engine.Summary of the snapshot, JSON encoded.
	SummaryJSON string `gorm:"column:summary_json"`
}

// TableName specifies the table name for SnapshotMeta.
func (SnapshotMeta) TableName() string {
	return "snapshot_meta"
}

// NewHotspot converts an engine record into its row form.
func NewHotspot(runID string, r engine.HotspotRecord) Hotspot {
	h := Hotspot{
		Serial:             r.Serial,
		RunID:              runID,
		Description:        r.Description,
		Lat:                r.Lat,
		Lng:                r.Lng,
		Zip:                r.Zip,
		WasteDaysToFill:    r.WasteDaysToFill,
		WasteFillPercent:   r.WasteFillPercent,
		WasteDaysTo80:      r.WasteDaysTo80,
		RecycleDaysToFill:  r.RecycleDaysToFill,
		RecycleFillPercent: r.RecycleFillPercent,
		RecycleDaysTo80:    r.RecycleDaysTo80,
		HotspotScore:       r.HotspotScore,
		PlacementStatus:    string(r.PlacementStatus),
	}
	if r.Campus != engine.CampusUnresolved {
		c := string(r.Campus)
		h.Campus = &c
	}
	return h
}

// Record converts the row back into an engine record.
func (h Hotspot) Record() engine.HotspotRecord {
	r := engine.HotspotRecord{
		Serial:             h.Serial,
		Description:        h.Description,
		Lat:                h.Lat,
		Lng:                h.Lng,
		Zip:                h.Zip,
		WasteDaysToFill:    h.WasteDaysToFill,
		WasteFillPercent:   h.WasteFillPercent,
		WasteDaysTo80:      h.WasteDaysTo80,
		RecycleDaysToFill:  h.RecycleDaysToFill,
		RecycleFillPercent: h.RecycleFillPercent,
		RecycleDaysTo80:    h.RecycleDaysTo80,
		HotspotScore:       h.HotspotScore,
		PlacementStatus:    engine.PlacementStatus(h.PlacementStatus),
	}
	if h.Campus != nil {
		r.Campus = engine.Campus(*h.Campus)
	}
	return r
}

// NewSuggestedSite converts the site at position within its campus list into its row form.
func NewSuggestedSite(runID string, position int, s engine.SuggestedSite) SuggestedSite {
	return SuggestedSite{
		Campus:           string(s.Campus),
		Position:         int32(position),
		RunID:            runID,
		Name:             s.Name,
		Lat:              s.Lat,
		Lng:              s.Lng,
		Reason:           s.Reason,
		PlacementStatus:  string(s.PlacementStatus),
		NearestBinMeters: s.NearestBinMeters,
	}
}

// Site converts the row back into an engine suggested site.
func (s SuggestedSite) Site() engine.SuggestedSite {
	return engine.SuggestedSite{
		AnchorPoint:      engine.AnchorPoint{Name: s.Name, Lat: s.Lat, Lng: s.Lng, Reason: s.Reason},
		Campus:           engine.Campus(s.Campus),
		PlacementStatus:  engine.PlacementStatus(s.PlacementStatus),
		NearestBinMeters: s.NearestBinMeters,
	}
}

// HotspotRows converts records in order.
func HotspotRows(runID string, records []engine.HotspotRecord) []Hotspot {
	rows := make([]Hotspot, 0, len(records))
	for _, r := range records {
		rows = append(rows, NewHotspot(runID, r))
	}
	return rows
}

// SuggestedSiteRows flattens the per-campus lists in campus order, keeping each list's order.
func SuggestedSiteRows(runID string, suggested map[engine.Campus][]engine.SuggestedSite) []SuggestedSite {
	var rows []SuggestedSite
	for _, campus := range engine.SortedCampuses(suggested) {
		for i, s := range suggested[campus] {
			rows = append(rows, NewSuggestedSite(runID, i, s))
		}
	}
	return rows
}
