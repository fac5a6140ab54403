package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"postureguard/internal/posture"
)

const (
	dateLayout = "2006-01-02"
	// DailyWindowDays covers today and the six days before it.
	DailyWindowDays = 7
)

type CameraCounts struct {
	Frontal int `json:"frontal"`
	Lateral int `json:"lateral"`
}

type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Statistics is derived from the stored records on demand and never persisted.
type Statistics struct {
	Total              int            `json:"total"`
	Today              int            `json:"today"`
	PoorPosture        int            `json:"poorPosture"`
	PerCamera          CameraCounts   `json:"perCamera"`
	LastOccurrence     time.Time      `json:"lastOccurrence"`
	Daily              map[string]int `json:"daily"`
	CameraDistribution map[string]int `json:"cameraDistribution"`
	WeeklyTrend        []WeekCount    `json:"weeklyTrend"`
	GeneratedAt        time.Time      `json:"generatedAt"`
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Aggregate rolls records up relative to now. Calendar days are taken in
// now's location. An empty input yields zero counts, empty maps and
// LastOccurrence set to now.
func Aggregate(records []posture.PostureRecord, now time.Time) *Statistics {
	loc := now.Location()
	s := &Statistics{
		LastOccurrence:     now,
		Daily:              map[string]int{},
		CameraDistribution: map[string]int{},
		WeeklyTrend:        []WeekCount{},
		GeneratedAt:        now,
	}
	if len(records) == 0 {
		return s
	}

	today := now.Format(dateLayout)
	window := make(map[string]bool, DailyWindowDays)
	for i := 0; i < DailyWindowDays; i++ {
		window[now.AddDate(0, 0, -i).Format(dateLayout)] = true
	}

	weeks := map[string]int{}
	var last time.Time
	for _, r := range records {
		t := r.Timestamp.In(loc)
		day := t.Format(dateLayout)

		s.Total++
		if day == today {
			s.Today++
		}
		if r.IsPoorPosture {
			s.PoorPosture++
		}
		switch r.Role {
		case posture.RoleFrontal:
			s.PerCamera.Frontal++
		case posture.RoleLateral:
			s.PerCamera.Lateral++
		}
		s.CameraDistribution[r.Role.String()]++
		if window[day] {
			s.Daily[day]++
		}
		weeks[weekKey(t)]++
		if t.After(last) {
			last = t
		}
	}
	s.LastOccurrence = last

	keys := make([]string, 0, len(weeks))
	for k := range weeks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.WeeklyTrend = append(s.WeeklyTrend, WeekCount{Week: k, Count: weeks[k]})
	}
	return s
}

// DailyWindow expands s.Daily into the seven days ending at now, oldest
// first, with zeros for days without records.
func DailyWindow(s *Statistics, now time.Time) []DayCount {
	days := make([]DayCount, 0, DailyWindowDays)
	for i := DailyWindowDays - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i).Format(dateLayout)
		days = append(days, DayCount{Date: d, Count: s.Daily[d]})
	}
	return days
}

type RecordSource interface {
	QueryRecords(ctx context.Context, r posture.TimeRange) ([]posture.PostureRecord, error)
}

// Service computes statistics over the full stored history.
type Service struct {
	src RecordSource
	now func() time.Time
}

func NewService(src RecordSource) *Service {
	return &Service{src: src, now: time.Now}
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	records, err := s.src.QueryRecords(ctx, posture.TimeRange{})
	if err != nil {
		return nil, err
	}
	return Aggregate(records, s.now()), nil
}

func (s *Service) Daily(ctx context.Context) ([]DayCount, error) {
	now := s.now()
	records, err := s.src.QueryRecords(ctx, posture.TimeRange{
		Start: time.Date(now.Year(), now.Month(), now.Day()-(DailyWindowDays-1), 0, 0, 0, 0, now.Location()),
	})
	if err != nil {
		return nil, err
	}
	return DailyWindow(Aggregate(records, now), now), nil
}
