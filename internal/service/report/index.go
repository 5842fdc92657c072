// internal/service/report/index.go

package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"kavach/internal/domain/report"
	"kavach/internal/geo"
)

// DefaultNearbyLimit caps result sets when the caller does not specify a
// limit.
const DefaultNearbyLimit = 20

// IndexConfig contains configuration for the proximity index.
type IndexConfig struct {
	// Precision is the geohash precision of the stored keys. It must
	// match the precision the lifecycle service encodes with and is
	// never widened per query: compensating for cell-boundary effects
	// is the distance post-filter's job, not the scan's.
	Precision int
}

// ProximityIndex implements report.Index with a two-phase query: a coarse
// lexicographic scan over geohash keys, then an exact haversine filter.
// The coarse phase may over- or under-select near cell boundaries; phase
// two guarantees no returned report lies outside the radius.
type ProximityIndex struct {
	store  report.Store
	logger *logrus.Logger
	config IndexConfig
}

// NewProximityIndex creates a proximity index over the given store.
func NewProximityIndex(store report.Store, logger *logrus.Logger, config IndexConfig) *ProximityIndex {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Precision <= 0 {
		config.Precision = geo.DefaultPrecision
	}

	return &ProximityIndex{
		store:  store,
		logger: logger,
		config: config,
	}
}

// FindNearby returns reports within radiusKm of the center, nearest first.
//
// Phases:
//  1. resolve the bounding box; when it wraps the antimeridian, derive two
//     key ranges and union the scans, de-duplicated by id;
//  2. range-scan the store for candidate keys;
//  3. apply the Since/Category filters in memory;
//  4. compute exact distance for every candidate and drop geohash false
//     positives beyond the radius;
//  5. sort ascending by distance and truncate to limit.
func (idx *ProximityIndex) FindNearby(
	ctx context.Context,
	lat, lng, radiusKm float64,
	filter report.NearbyFilter,
	limit int,
) ([]report.Nearby, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %v", radiusKm)
	}
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}

	box, err := geo.ResolveBoundingBox(lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	ranges, err := geo.KeyRanges(box, idx.config.Precision)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var results []report.Nearby

	for _, kr := range ranges {
		candidates, err := idx.store.QueryKeyRange(ctx, kr, 0)
		if err != nil {
			return nil, fmt.Errorf("error scanning key range %q..%q: %w", kr.Start, kr.End, err)
		}

		for _, r := range candidates {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}

			if !filter.Since.IsZero() && r.CreatedAt.Before(filter.Since) {
				continue
			}
			if filter.Category != "" && r.Category != filter.Category {
				continue
			}

			distance := geo.Haversine(lat, lng, r.Lat, r.Lng)
			if distance > radiusKm {
				continue
			}

			results = append(results, report.Nearby{Report: r, DistanceKm: distance})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	if len(results) > limit {
		results = results[:limit]
	}

	idx.logger.WithFields(logrus.Fields{
		"candidates": len(seen),
		"results":    len(results),
		"ranges":     len(ranges),
	}).Debug("proximity query complete")

	return results, nil
}
