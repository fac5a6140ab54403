package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postureguard/internal/posture"
)

func rec(t time.Time, role posture.CameraRole, poor bool) posture.PostureRecord {
	return posture.PostureRecord{Timestamp: t, NeckAngle: 40, Role: role, IsPoorPosture: poor}
}

func TestAggregateEmptyHistory(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := Aggregate(nil, now)

	assert.Zero(t, s.Total)
	assert.Zero(t, s.Today)
	assert.Zero(t, s.PoorPosture)
	assert.Equal(t, CameraCounts{}, s.PerCamera)
	assert.Empty(t, s.Daily)
	assert.Empty(t, s.CameraDistribution)
	assert.Empty(t, s.WeeklyTrend)
	assert.True(t, s.LastOccurrence.Equal(now))
}

func TestAggregateRollups(t *testing.T) {
	// Monday 10 March 2025, ISO week 11.
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	records := []posture.PostureRecord{
		rec(now.AddDate(0, 0, -20), posture.RoleFrontal, false), // 2025-02-18, W08
		rec(now.AddDate(0, 0, -7), posture.RoleFrontal, true),   // 2025-03-03, outside the daily window
		rec(now.AddDate(0, 0, -6), posture.RoleLateral, true),   // 2025-03-04
		rec(now.AddDate(0, 0, -1), posture.RoleFrontal, false),  // Sunday, W10
		rec(now.Add(-2*time.Hour), posture.RoleFrontal, true),
		rec(now.Add(-time.Hour), posture.RoleLateral, false),
	}
	s := Aggregate(records, now)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Today)
	assert.Equal(t, 3, s.PoorPosture)
	assert.Equal(t, CameraCounts{Frontal: 4, Lateral: 2}, s.PerCamera)
	assert.Equal(t, map[string]int{"frontal": 4, "lateral": 2}, s.CameraDistribution)
	assert.Equal(t, map[string]int{
		"2025-03-04": 1,
		"2025-03-09": 1,
		"2025-03-10": 2,
	}, s.Daily)
	assert.Equal(t, []WeekCount{
		{Week: "2025-W08", Count: 1},
		{Week: "2025-W10", Count: 3},
		{Week: "2025-W11", Count: 2},
	}, s.WeeklyTrend)
	assert.True(t, s.LastOccurrence.Equal(now.Add(-time.Hour)))
}

func TestWeekKeyUsesISOYear(t *testing.T) {
	// 30 December 2024 belongs to ISO week 1 of 2025.
	assert.Equal(t, "2025-W01", weekKey(time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2020-W53", weekKey(time.Date(2021, 1, 1, 9, 0, 0, 0, time.UTC)))
}

func TestTodayFollowsNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	now := time.Date(2025, 3, 10, 1, 0, 0, 0, loc) // 04:00 UTC
	// 02:00 UTC on the 10th is still the 9th at UTC-3.
	s := Aggregate([]posture.PostureRecord{rec(time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), posture.RoleFrontal, false)}, now)
	assert.Equal(t, 0, s.Today)
	assert.Equal(t, map[string]int{"2025-03-09": 1}, s.Daily)
}

func TestDailyWindowFillsZeros(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := Aggregate([]posture.PostureRecord{
		rec(now.AddDate(0, 0, -3), posture.RoleFrontal, false),
		rec(now, posture.RoleFrontal, false),
	}, now)

	days := DailyWindow(s, now)
	require.Len(t, days, DailyWindowDays)
	assert.Equal(t, DayCount{Date: "2025-03-04", Count: 0}, days[0])
	assert.Equal(t, DayCount{Date: "2025-03-07", Count: 1}, days[3])
	assert.Equal(t, DayCount{Date: "2025-03-10", Count: 1}, days[6])
}

type fakeSource struct {
	records []posture.PostureRecord
	got     posture.TimeRange
	err     error
}

func (f *fakeSource) QueryRecords(ctx context.Context, r posture.TimeRange) ([]posture.PostureRecord, error) {
	f.got = r
	return f.records, f.err
}

func TestServiceStatistics(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{records: []posture.PostureRecord{rec(now, posture.RoleLateral, true)}}
	svc := NewService(src)
	svc.now = func() time.Time { return now }

	s, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, posture.TimeRange{}, src.got, "statistics cover the whole history")

	days, err := svc.Daily(context.Background())
	require.NoError(t, err)
	assert.Len(t, days, DailyWindowDays)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), src.got.Start)

	src.err = errors.New("db down")
	_, err = svc.Statistics(context.Background())
	assert.Error(t, err)
}
