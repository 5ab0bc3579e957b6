package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"go.uber.org/fx"

	appconfig "github.com/tigerroll/ecoroute/internal/config"
	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/internal/ingest"
	"github.com/tigerroll/ecoroute/internal/snapshot"
	"github.com/tigerroll/ecoroute/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/ecoroute/pkg/batch/adapter/database/gorm"
)

// ReportOptions selects what the report shows.
type ReportOptions struct {
	// Campus restricts the report to one campus. Empty means every campus.
	Campus string
	// CriticalPercent is the fill level at or above which a bin is listed as critical.
	// Zero uses the configured threshold.
	CriticalPercent float64
	// Top bounds the most-overdue list. Zero uses the configured top_n.
	Top int
}

// RunReport reads the published snapshot from the snapshot database and writes a
// plain-text report to w.
func RunReport(ctx context.Context, envFilePath string, res Resources, opts ReportOptions, w io.Writer) error {
	var (
		resolver database.DBConnectionResolver
		appCfg   *appconfig.AppConfig
	)
	app := fx.New(append(baseOptions(envFilePath, res),
		fx.Options(DBProviderOptions()...),
		gormadapter.Module,
		fx.Populate(&resolver, &appCfg),
	)...)
	if err := app.Err(); err != nil {
		return fmt.Errorf("application setup failed: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(context.Background())

	conn, err := resolver.ResolveDBConnection(ctx, appCfg.Publish.DBRef)
	if err != nil {
		return fmt.Errorf("failed to resolve database '%s': %w", appCfg.Publish.DBRef, err)
	}
	pub, err := snapshot.NewRepository(conn.DB(ctx), 0).Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		fmt.Fprintln(w, "No snapshot has been published yet. Run 'ecoroute run' first.")
		return nil
	}
	if err != nil {
		return err
	}

	cfg := appCfg.Engine.Summary
	if opts.CriticalPercent > 0 {
		cfg.CriticalFillPercent = opts.CriticalPercent
	}
	if opts.Top > 0 {
		cfg.TopN = opts.Top
	}
	return WriteReport(w, pub, opts.Campus, cfg)
}

// WriteReport renders the summary, the critical bins, the most overdue bins and the
// suggested sites of pub. Figures are recomputed from the stored records with cfg, so a
// different critical threshold than the one the snapshot was built with can be applied.
func WriteReport(w io.Writer, pub *snapshot.Published, campusName string, cfg engine.SummaryConfig) error {
	records := pub.Hotspots
	suggested := pub.Suggested
	if campusName != "" {
		campus, ok := ingest.ParseCampus(campusName)
		if !ok {
			return fmt.Errorf("unknown campus '%s' (expected one of %v)", campusName, ingest.KnownCampuses)
		}
		records = engine.FilterByCampus(records, campus)
		suggested = map[engine.Campus][]engine.SuggestedSite{campus: pub.Suggested[campus]}
	}
	summary := engine.Summarize(records, suggested, cfg)

	fmt.Fprintf(w, "Snapshot %s generated %s (job execution %s)\n\n",
		pub.Meta.RunID, pub.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"), orDash(pub.Meta.JobExecutionID))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPUS\tBINS\tRESOLVED\tAVG WASTE %\tAVG RECYCLE %\tCRITICAL\tHOT\tGOOD\tCOLD\tSUGGESTED")
	rows := summary.Campuses
	if campusName == "" {
		rows = append(rows, summary.Overall)
	}
	for _, c := range rows {
		name := string(c.Campus)
		if name == "" {
			name = "all"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			name, c.Total, c.Resolved, num(c.AvgWasteFill), num(c.AvgRecycleFill),
			c.Critical, c.Hot, c.Good, c.Cold, c.Suggested)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	critical := engine.Critical(records, cfg.CriticalFillPercent)
	fmt.Fprintf(w, "\nCritical bins (fill >= %s%%): %d\n", strconv.FormatFloat(cfg.CriticalFillPercent, 'f', -1, 64), len(critical))
	if len(critical) > 0 {
		if err := writeRecords(w, critical); err != nil {
			return err
		}
	}

	overdue := engine.TopBy(records, engine.SortWasteDaysTo80, cfg.TopN)
	fmt.Fprintf(w, "\nMost overdue trash collections: %d\n", len(overdue))
	if len(overdue) > 0 {
		if err := writeRecords(w, overdue); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nSuggested sites: %d\n", summary.Overall.Suggested)
	if summary.Overall.Suggested == 0 {
		return nil
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPUS\tANCHOR\tLAT\tLNG\tNEAREST BIN M\tREASON")
	for _, c := range ingest.KnownCampuses {
		for _, s := range suggested[c] {
			fmt.Fprintf(tw, "%s\t%s\t%.5f\t%.5f\t%s\t%s\n", c, s.Name, s.Lat, s.Lng, num(s.NearestBinMeters), s.Reason)
		}
	}
	return tw.Flush()
}

func writeRecords(w io.Writer, records []engine.HotspotRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIAL\tDESCRIPTION\tCAMPUS\tWASTE %\tRECYCLE %\tWASTE DAYS TO 80\tSCORE\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.1f\t%s\n",
			r.Serial, r.Description, orDash(string(r.Campus)), num(r.WasteFillPercent), num(r.RecycleFillPercent),
			num(r.WasteDaysTo80), r.HotspotScore, r.PlacementStatus)
	}
	return tw.Flush()
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
