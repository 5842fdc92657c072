// internal/adapter/storage/memory/store.go

// Package memory provides an in-memory report.Store used by tests and
// development setups. It honors the same contract as the pgx-backed
// store, including key ordering and status compare-and-swap.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kavach/internal/domain/report"
	"kavach/internal/geo"
)

// Store is an in-memory report.Store. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	reports map[string]report.Report
	updates map[string][]report.StatusUpdate
	media   map[string][]report.MediaRef
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		reports: make(map[string]report.Report),
		updates: make(map[string][]report.StatusUpdate),
		media:   make(map[string][]report.MediaRef),
	}
}

// Get returns a report by id.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	return &r, nil
}

// Put inserts or replaces a report.
func (s *Store) Put(ctx context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[r.ID] = r
	return nil
}

// Delete removes a report record.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return report.ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

// UpdateCoordinate sets a report's coordinate and derived key.
func (s *Store) UpdateCoordinate(ctx context.Context, id string, lat, lng float64, geoKey string, updatedAt time.Time) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}

	r.Lat = lat
	r.Lng = lng
	r.GeoKey = geoKey
	r.UpdatedAt = updatedAt
	s.reports[id] = r

	return &r, nil
}

// CompareAndSwapStatus moves a report between statuses atomically.
func (s *Store) CompareAndSwapStatus(ctx context.Context, id string, from, to report.Status, updatedAt time.Time) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	if r.Status != from {
		return nil, report.ErrStatusConflict
	}

	r.Status = to
	r.UpdatedAt = updatedAt
	s.reports[id] = r

	return &r, nil
}

// QueryKeyRange returns reports with keys in the inclusive range, ordered
// by key then by creation time descending.
func (s *Store) QueryKeyRange(ctx context.Context, kr geo.KeyRange, limit int) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []report.Report{}
	for _, r := range s.reports {
		if r.GeoKey >= kr.Start && r.GeoKey <= kr.End {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].GeoKey != results[j].GeoKey {
			return results[i].GeoKey < results[j].GeoKey
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// QueryWindow returns reports created within [from, to], newest first.
func (s *Store) QueryWindow(ctx context.Context, from, to time.Time) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []report.Report{}
	for _, r := range s.reports {
		if r.CreatedAt.Before(from) || r.CreatedAt.After(to) {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	return results, nil
}

// AppendUpdate appends one audit entry.
func (s *Store) AppendUpdate(ctx context.Context, u report.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates[u.ReportID] = append(s.updates[u.ReportID], u)
	return nil
}

// ListUpdates returns a report's audit trail in insertion order.
func (s *Store) ListUpdates(ctx context.Context, reportID string) ([]report.StatusUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	updates := s.updates[reportID]
	out := make([]report.StatusUpdate, len(updates))
	copy(out, updates)
	return out, nil
}

// DeleteUpdates removes a report's audit trail.
func (s *Store) DeleteUpdates(ctx context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.updates, reportID)
	return nil
}

// AddMediaRef attaches a media reference to a report.
func (s *Store) AddMediaRef(ctx context.Context, m report.MediaRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.media[m.ReportID] = append(s.media[m.ReportID], m)
	return nil
}

// ListMedia returns a report's media references.
func (s *Store) ListMedia(ctx context.Context, reportID string) ([]report.MediaRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	media := s.media[reportID]
	out := make([]report.MediaRef, len(media))
	copy(out, media)
	return out, nil
}

// DeleteMedia removes a report's media references.
func (s *Store) DeleteMedia(ctx context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.media, reportID)
	return nil
}
