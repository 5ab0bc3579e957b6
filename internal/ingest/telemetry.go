// Package ingest decodes the EcoRoute input files: the per-stream telemetry export,
// the geocode tables and the anchor catalog.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tigerroll/ecoroute/internal/engine"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// Telemetry columns after header normalization.
const (
	colSerial            = "serial"
	colDescription       = "description"
	colStream            = "stream"
	colAvgDaysToFill     = "avg_days_to_fill"
	colAvgFillPercent    = "avg_fill_percent"
	colEstimatedDaysTo80 = "estimated_days_to_80"
)

var telemetryAliases = map[string]string{
	"serial_number":     colSerial,
	"bin_serial":        colSerial,
	"location":          colDescription,
	"stream_type":       colStream,
	"days_to_fill":      colAvgDaysToFill,
	"fill_percent":      colAvgFillPercent,
	"avg_fill":          colAvgFillPercent,
	"avg_fill_pct":      colAvgFillPercent,
	"days_to_80":        colEstimatedDaysTo80,
	"est_days_to_80":    colEstimatedDaysTo80,
	"estimated_days_80": colEstimatedDaysTo80,
}

// TelemetryStats counts what happened to the rows of one telemetry file.
type TelemetryStats struct {
	Rows            int
	Decoded         int
	MissingSerial   int
	UnknownStream   int
	MalformedFields int
}

// Dropped returns the number of rows that did not produce a sample.
func (s TelemetryStats) Dropped() int {
	return s.MissingSerial + s.UnknownStream
}

// ParseStream maps a stream tag to a Stream. "trash" is an alias of waste and
// "recycling" of recycle.
func ParseStream(tag string) (engine.Stream, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "waste", "trash":
		return engine.StreamWaste, true
	case "recycle", "recycling":
		return engine.StreamRecycle, true
	default:
		return "", false
	}
}

// ParseNumber parses a numeric telemetry field. Blank, unparseable and non-finite values
// are absent, never zero. A trailing percent sign is ignored.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// DecodeTelemetry reads a telemetry CSV with one row per (serial, stream). The header names
// the columns; matching is case-insensitive and tolerates spaces and dashes. Rows without a
// serial or with an unknown stream tag are dropped with a warning. Only a broken CSV
// structure or a header without serial and stream columns is an error.
func DecodeTelemetry(r io.Reader) ([]engine.RawStreamSample, TelemetryStats, error) {
	var stats TelemetryStats

	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("failed to read telemetry header: %w", err)
	}
	cols := indexHeader(header, telemetryAliases)
	for _, required := range []string{colSerial, colStream} {
		if _, ok := cols[required]; !ok {
			return nil, stats, fmt.Errorf("telemetry header has no %q column (got %v)", required, header)
		}
	}

	var samples []engine.RawStreamSample
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read telemetry row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++
		line := stats.Rows + 1

		serial := strings.TrimSpace(field(record, cols, colSerial))
		if serial == "" {
			stats.MissingSerial++
			logger.Warnf("Telemetry line %d has no serial; row dropped.", line)
			continue
		}
		tag := field(record, cols, colStream)
		stream, ok := ParseStream(tag)
		if !ok {
			stats.UnknownStream++
			logger.Warnf("Telemetry line %d (serial %s) has unknown stream %q; row dropped.", line, serial, tag)
			continue
		}

		sample := engine.RawStreamSample{
			Serial:            serial,
			Description:       strings.TrimSpace(field(record, cols, colDescription)),
			Stream:            stream,
			AvgDaysToFill:     ParseNumber(field(record, cols, colAvgDaysToFill)),
			AvgFillPercent:    ParseNumber(field(record, cols, colAvgFillPercent)),
			EstimatedDaysTo80: ParseNumber(field(record, cols, colEstimatedDaysTo80)),
		}
		for _, c := range []string{colAvgDaysToFill, colAvgFillPercent, colEstimatedDaysTo80} {
			if raw := strings.TrimSpace(field(record, cols, c)); raw != "" && ParseNumber(raw) == nil {
				stats.MalformedFields++
				logger.Debugf("Telemetry line %d (serial %s): %s value %q treated as absent.", line, serial, c, raw)
			}
		}
		samples = append(samples, sample)
		stats.Decoded++
	}
	return samples, stats, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false
	return cr
}

// normalizeColumn turns "Avg Days-to Fill" into "avg_days_to_fill". A UTF-8 BOM is dropped.
func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return name
}

func indexHeader(header []string, aliases map[string]string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeColumn(h)
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
