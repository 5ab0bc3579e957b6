package engine

import "github.com/hashicorp/go-multierror"

// Options bundles the tunable configuration of every engine component.
type Options struct {
	Fusion   FusionConfig   `yaml:"fusion"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Campus   CampusRule     `yaml:"campus"`
	Coverage CoverageConfig `yaml:"coverage"`
	Summary  SummaryConfig  `yaml:"summary"`
}

// DefaultOptions returns the defaults of every component.
func DefaultOptions() Options {
	return Options{
		Fusion:   DefaultFusionConfig(),
		Scoring:  DefaultScoringConfig(),
		Campus:   DefaultCampusRule(),
		Coverage: DefaultCoverageConfig(),
		Summary:  DefaultSummaryConfig(),
	}
}

// Validate validates every section and reports all problems at once.
func (o Options) Validate() error {
	var result *multierror.Error
	for _, err := range []error{
		o.Fusion.Validate(),
		o.Scoring.Validate(),
		o.Coverage.Validate(),
		o.Summary.Validate(),
	} {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Reference is the reference data of one recompute: the two geocode tables and the anchor catalog.
type Reference struct {
	Primary   *GeoTable
	Overrides *GeoTable
	Anchors   AnchorCatalog
}

// Snapshot is the complete output of one recompute.
type Snapshot struct {
	Hotspots  []HotspotRecord            `json:"hotspots"`
	Suggested map[Campus][]SuggestedSite `json:"suggested"`
	Summary   Summary                    `json:"summary"`
}

// SnapshotAssembler runs fusion, resolution, scoring and gap detection over one set of inputs.
type SnapshotAssembler struct {
	opts     Options
	fuser    *StreamFuser
	resolver *GeoResolver
	scorer   *HotspotScorer
	detector *CoverageGapDetector
	anchors  AnchorCatalog
}

// NewSnapshotAssembler creates a SnapshotAssembler bound to ref.
func NewSnapshotAssembler(opts Options, ref Reference) *SnapshotAssembler {
	return &SnapshotAssembler{
		opts:     opts,
		fuser:    NewStreamFuser(opts.Fusion),
		resolver: NewGeoResolver(ref.Primary, ref.Overrides, opts.Campus),
		scorer:   NewHotspotScorer(opts.Scoring),
		detector: NewCoverageGapDetector(opts.Coverage),
		anchors:  ref.Anchors,
	}
}

// Fuser returns the assembler's StreamFuser.
func (a *SnapshotAssembler) Fuser() *StreamFuser { return a.fuser }

// Detector returns the assembler's CoverageGapDetector.
func (a *SnapshotAssembler) Detector() *CoverageGapDetector { return a.detector }

// Anchors returns the anchor catalog.
func (a *SnapshotAssembler) Anchors() AnchorCatalog { return a.anchors }

// BuildRecord resolves and scores one fused bin.
func (a *SnapshotAssembler) BuildRecord(f FusedBinMetrics) HotspotRecord {
	loc := a.resolver.Resolve(f.Description)
	score, status := a.scorer.Score(f)

	rec := HotspotRecord{
		Serial:          f.Serial,
		Description:     f.Description,
		Lat:             loc.Lat,
		Lng:             loc.Lng,
		Zip:             loc.Zip,
		Campus:          loc.Campus,
		HotspotScore:    score,
		PlacementStatus: status,
	}
	if f.Waste != nil {
		rec.WasteDaysToFill = f.Waste.DaysToFill
		rec.WasteFillPercent = f.Waste.FillPercent
		rec.WasteDaysTo80 = f.Waste.DaysTo80
	}
	if f.Recycle != nil {
		rec.RecycleDaysToFill = f.Recycle.DaysToFill
		rec.RecycleFillPercent = f.Recycle.FillPercent
		rec.RecycleDaysTo80 = f.Recycle.DaysTo80
	}
	return rec
}

// CampusCoordinates groups the resolved coordinates of records by campus.
func CampusCoordinates(records []HotspotRecord) map[Campus][]Coordinate {
	out := make(map[Campus][]Coordinate)
	for _, r := range records {
		if !r.Resolved() || r.Campus == CampusUnresolved {
			continue
		}
		out[r.Campus] = append(out[r.Campus], Coordinate{Lat: *r.Lat, Lng: *r.Lng})
	}
	return out
}

// SuggestSites runs gap detection for every campus of the anchor catalog against records.
// Campuses without gaps are omitted.
func (a *SnapshotAssembler) SuggestSites(records []HotspotRecord) map[Campus][]SuggestedSite {
	coords := CampusCoordinates(records)
	out := make(map[Campus][]SuggestedSite)
	for _, campus := range a.anchors.Campuses() {
		if sites := a.detector.Detect(campus, a.anchors[campus], coords[campus]); len(sites) > 0 {
			out[campus] = sites
		}
	}
	return out
}

// Assemble produces the full snapshot for samples. Records are ordered by serial so identical
// inputs always yield identical output.
func (a *SnapshotAssembler) Assemble(samples []RawStreamSample) Snapshot {
	fused := a.fuser.FuseOrdered(samples)
	records := make([]HotspotRecord, 0, len(fused))
	for _, f := range fused {
		records = append(records, a.BuildRecord(f))
	}
	suggested := a.SuggestSites(records)
	return Snapshot{
		Hotspots:  records,
		Suggested: suggested,
		Summary:   Summarize(records, suggested, a.opts.Summary),
	}
}
