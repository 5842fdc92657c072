// internal/service/report/stats.go

package report

import (
	"context"
	"fmt"
	"time"

	"kavach/internal/domain/report"
)

// TimeBucket partitions the day by wall-clock hour.
type TimeBucket string

const (
	BucketMorning   TimeBucket = "morning"   // 06–12
	BucketAfternoon TimeBucket = "afternoon" // 12–17
	BucketEvening   TimeBucket = "evening"   // 17–21
	BucketNight     TimeBucket = "night"     // 21–06
)

// BucketForHour maps an hour of day to its bucket.
func BucketForHour(hour int) TimeBucket {
	switch {
	case hour >= 6 && hour < 12:
		return BucketMorning
	case hour >= 12 && hour < 17:
		return BucketAfternoon
	case hour >= 17 && hour < 21:
		return BucketEvening
	default:
		return BucketNight
	}
}

// AggregateStats is a transient computed view over a report snapshot. It
// is never persisted and is safe to discard and recompute.
//
// The order slices record first-seen order so that consumers can render
// the distributions deterministically.
type AggregateStats struct {
	Total          int                     `json:"total"`
	ByStatus       map[report.Status]int   `json:"by_status"`
	ByCategory     map[report.Category]int `json:"by_category"`
	CategoryOrder  []report.Category       `json:"category_order"`
	ByGeography    map[string]int          `json:"by_geography"`
	GeographyOrder []string                `json:"geography_order"`
	ByTimeOfDay    map[TimeBucket]int      `json:"by_time_of_day"`
	WindowStart    time.Time               `json:"window_start"`
	WindowEnd      time.Time               `json:"window_end"`
}

// GeoKeyFunc maps a report to the geography bucket it is counted under,
// e.g. an administrative district. The default uses a geohash prefix.
type GeoKeyFunc func(report.Report) string

// geoPrefixKey buckets reports by a short geohash prefix (~city-district
// sized cells at 4 characters).
func geoPrefixKey(r report.Report) string {
	if len(r.GeoKey) > 4 {
		return r.GeoKey[:4]
	}
	return r.GeoKey
}

// Aggregator tallies report distributions. Bucketing uses one configured
// timezone for every report; the original data carries no per-report zone,
// so one consistent policy (default UTC) is applied instead.
type Aggregator struct {
	location *time.Location
	geoKey   GeoKeyFunc
}

// NewAggregator creates an aggregator. A nil location means UTC; a nil
// geoKey falls back to the geohash-prefix bucketing.
func NewAggregator(location *time.Location, geoKey GeoKeyFunc) *Aggregator {
	if location == nil {
		location = time.UTC
	}
	if geoKey == nil {
		geoKey = geoPrefixKey
	}
	return &Aggregator{location: location, geoKey: geoKey}
}

// Aggregate tallies four independent dimensions over the given snapshot.
// The snapshot is expected to be pre-filtered to the window; the window
// bounds are recorded in the result for provenance only. Output is
// deterministic for a deterministic input ordering: map counts are exact,
// and the order slices preserve first-seen order without re-sorting.
func (a *Aggregator) Aggregate(reports []report.Report, windowStart, windowEnd time.Time) AggregateStats {
	stats := AggregateStats{
		Total:       len(reports),
		ByStatus:    make(map[report.Status]int),
		ByCategory:  make(map[report.Category]int),
		ByGeography: make(map[string]int),
		ByTimeOfDay: make(map[TimeBucket]int),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	for _, r := range reports {
		stats.ByStatus[r.Status]++

		if _, seen := stats.ByCategory[r.Category]; !seen {
			stats.CategoryOrder = append(stats.CategoryOrder, r.Category)
		}
		stats.ByCategory[r.Category]++

		key := a.geoKey(r)
		if _, seen := stats.ByGeography[key]; !seen {
			stats.GeographyOrder = append(stats.GeographyOrder, key)
		}
		stats.ByGeography[key]++

		hour := r.CreatedAt.In(a.location).Hour()
		stats.ByTimeOfDay[BucketForHour(hour)]++
	}

	return stats
}

// StatsService produces aggregate statistics over a rolling window of
// stored reports.
type StatsService struct {
	store      report.Store
	clock      report.Clock
	aggregator *Aggregator
}

// NewStatsService creates a stats service.
func NewStatsService(store report.Store, clock report.Clock, aggregator *Aggregator) *StatsService {
	if clock == nil {
		clock = report.SystemClock{}
	}
	if aggregator == nil {
		aggregator = NewAggregator(nil, nil)
	}
	return &StatsService{store: store, clock: clock, aggregator: aggregator}
}

// Overview snapshots the store for the trailing window and aggregates it.
func (s *StatsService) Overview(ctx context.Context, window time.Duration) (AggregateStats, error) {
	if window <= 0 {
		return AggregateStats{}, fmt.Errorf("window must be positive, got %v", window)
	}

	end := s.clock.Now()
	start := end.Add(-window)

	reports, err := s.store.QueryWindow(ctx, start, end)
	if err != nil {
		return AggregateStats{}, fmt.Errorf("error querying report window: %w", err)
	}

	return s.aggregator.Aggregate(reports, start, end), nil
}
