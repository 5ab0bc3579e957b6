package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/ecoroute/internal/engine"
)

func summaryRecords() []engine.HotspotRecord {
	return []engine.HotspotRecord{
		{Serial: "a", Lat: f(1), Lng: f(1), Campus: engine.CampusCharlesRiver, PlacementStatus: engine.StatusHot,
			WasteDaysToFill: f(1.5), WasteFillPercent: f(90), WasteDaysTo80: f(1), RecycleFillPercent: f(40), RecycleDaysTo80: f(6)},
		{Serial: "b", Lat: f(1), Lng: f(1), Campus: engine.CampusCharlesRiver, PlacementStatus: engine.StatusCold,
			WasteDaysToFill: f(30), WasteFillPercent: f(10), WasteDaysTo80: f(4), RecycleFillPercent: f(85), RecycleDaysTo80: f(2)},
		{Serial: "c", Lat: f(1), Lng: f(1), Campus: engine.CampusMedical, PlacementStatus: engine.StatusGood,
			WasteDaysToFill: f(5), WasteFillPercent: f(60), WasteDaysTo80: f(5)},
		{Serial: "d", Campus: engine.CampusUnresolved, PlacementStatus: engine.StatusGood,
			WasteDaysToFill: f(0.5), WasteFillPercent: f(99)},
	}
}

func TestSummarize(t *testing.T) {
	suggested := map[engine.Campus][]engine.SuggestedSite{
		engine.CampusCharlesRiver: {{}, {}},
		engine.CampusFenway:       {{}},
	}

	s := engine.Summarize(summaryRecords(), suggested, engine.DefaultSummaryConfig())

	assert.Equal(t, 4, s.Overall.Total)
	assert.Equal(t, 3, s.Overall.Resolved)
	assert.Equal(t, 3, s.Overall.Critical)
	assert.Equal(t, 3, s.Overall.Suggested)
	require.NotNil(t, s.Overall.AvgWasteFill)
	assert.Equal(t, 64.8, *s.Overall.AvgWasteFill)
	assert.Equal(t, 62.5, *s.Overall.AvgRecycleFill)

	require.Len(t, s.Campuses, 3)
	cr := s.Campuses[0]
	assert.Equal(t, engine.CampusCharlesRiver, cr.Campus)
	assert.Equal(t, 2, cr.Total)
	assert.Equal(t, 1, cr.Hot)
	assert.Equal(t, 1, cr.Cold)
	assert.Equal(t, 0, cr.Good)
	assert.Equal(t, 2, cr.Critical)
	assert.Equal(t, 2, cr.Suggested)
	assert.Equal(t, engine.UrgencyBuckets{Urgent: 1, Soon: 1}, cr.Waste)
	assert.Equal(t, engine.UrgencyBuckets{Urgent: 1, OnTrack: 1}, cr.Recycle)

	fenway := s.Campuses[1]
	assert.Equal(t, engine.CampusFenway, fenway.Campus)
	assert.Equal(t, 0, fenway.Total)
	assert.Equal(t, 1, fenway.Suggested)
	assert.Nil(t, fenway.AvgWasteFill)

	medical := s.Campuses[2]
	assert.Equal(t, engine.UrgencyBuckets{Soon: 1}, medical.Waste)
	assert.Equal(t, engine.UrgencyBuckets{}, medical.Recycle)
}

func TestCritical(t *testing.T) {
	out := engine.Critical(summaryRecords(), 85)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"d", "a", "b"}, []string{out[0].Serial, out[1].Serial, out[2].Serial})

	assert.Len(t, engine.Critical(summaryRecords(), 95), 1)
}

func TestFilterByCampus(t *testing.T) {
	assert.Len(t, engine.FilterByCampus(summaryRecords(), engine.CampusCharlesRiver), 2)
	assert.Len(t, engine.FilterByCampus(summaryRecords(), engine.CampusFenway), 0)
	assert.Len(t, engine.FilterByCampus(summaryRecords(), engine.CampusUnresolved), 4)
}

func TestTopBy(t *testing.T) {
	busiest := engine.TopBy(summaryRecords(), engine.SortWasteDaysToFill, 2)
	require.Len(t, busiest, 2)
	assert.Equal(t, "a", busiest[0].Serial, "unresolved d is excluded even though it fills fastest")
	assert.Equal(t, "c", busiest[1].Serial)

	overdue := engine.TopBy(summaryRecords(), engine.SortRecycleDaysTo80, 0)
	require.Len(t, overdue, 2)
	assert.Equal(t, "b", overdue[0].Serial)

	records := summaryRecords()
	records[0].HotspotScore, records[1].HotspotScore, records[2].HotspotScore = 10, 70, 70
	byScore := engine.TopBy(records, engine.SortHotspotScore, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{byScore[0].Serial, byScore[1].Serial, byScore[2].Serial})
}

func TestSummaryConfig_Validate(t *testing.T) {
	assert.NoError(t, engine.DefaultSummaryConfig().Validate())
	assert.Error(t, engine.SummaryConfig{UrgentDaysTo80: 6, SoonDaysTo80: 5}.Validate())
	assert.Error(t, engine.SummaryConfig{TopN: -1}.Validate())
}
