// internal/service/report/lifecycle_test.go

package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kavach/internal/adapter/storage/memory"
	"kavach/internal/domain/report"
)

// fixedClock returns a constant time so timestamps are assertable.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// recordingSink captures notified events and optionally fails.
type recordingSink struct {
	events []report.Event
	err    error
}

func (s *recordingSink) Notify(ctx context.Context, e report.Event) error {
	s.events = append(s.events, e)
	return s.err
}

// racingStore wraps a store and lets a rival writer move the report just
// before the wrapped compare-and-swap runs.
type racingStore struct {
	report.Store
	rivalTo report.Status
	raced   bool
}

func (s *racingStore) CompareAndSwapStatus(ctx context.Context, id string, from, to report.Status, updatedAt time.Time) (*report.Report, error) {
	if !s.raced {
		s.raced = true
		if _, err := s.Store.CompareAndSwapStatus(ctx, id, from, s.rivalTo, updatedAt); err != nil {
			return nil, err
		}
	}
	return s.Store.CompareAndSwapStatus(ctx, id, from, to, updatedAt)
}

// failingStore wraps a store and fails selected operations.
type failingStore struct {
	report.Store
	failDeleteMedia   bool
	failDeleteUpdates bool
}

func (s *failingStore) DeleteMedia(ctx context.Context, reportID string) error {
	if s.failDeleteMedia {
		return errors.New("media backend unavailable")
	}
	return s.Store.DeleteMedia(ctx, reportID)
}

func (s *failingStore) DeleteUpdates(ctx context.Context, reportID string) error {
	if s.failDeleteUpdates {
		return errors.New("updates backend unavailable")
	}
	return s.Store.DeleteUpdates(ctx, reportID)
}

func newTestLifecycle(store report.Store, sink report.NotificationSink) *LifecycleService {
	clock := fixedClock{now: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)}
	return NewLifecycleService(store, sink, clock, nil, LifecycleConfig{})
}

func TestCreateReport(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	svc := newTestLifecycle(store, sink)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{
		Category:    report.CategoryTheft,
		Description: "Stolen bicycle near the station",
		Lat:         23.0225,
		Lng:         72.5714,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == "" {
		t.Error("Expected a generated id")
	}
	if created.Status != report.StatusPending {
		t.Errorf("Expected status pending, got %s", created.Status)
	}
	if created.GeoKey != "ts5dg" {
		t.Errorf("Expected geo key ts5dg, got %s", created.GeoKey)
	}

	updates, err := svc.Updates(ctx, created.ID)
	if err != nil {
		t.Fatalf("Updates failed: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("Expected exactly 1 initial update, got %d", len(updates))
	}
	if updates[0].Content != "Report submitted." {
		t.Errorf("Unexpected initial update content: %q", updates[0].Content)
	}
	if updates[0].Author != report.AuthorSystem {
		t.Errorf("Expected system author, got %s", updates[0].Author)
	}

	if len(sink.events) != 1 || sink.events[0].Kind != "created" {
		t.Errorf("Expected one created event, got %+v", sink.events)
	}
}

func TestCreateReportInvalid(t *testing.T) {
	svc := newTestLifecycle(memory.NewStore(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, report.Report{Category: "gossip", Lat: 0, Lng: 0}); err == nil {
		t.Error("Expected error for unknown category")
	}
	if _, err := svc.Create(ctx, report.Report{Category: report.CategoryTheft, Lat: 91, Lng: 0}); err == nil {
		t.Error("Expected error for out-of-range latitude")
	}
}

func TestTransitionHappyPath(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	svc := newTestLifecycle(store, sink)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{
		Category: report.CategoryAssault,
		Lat:      23.03,
		Lng:      72.58,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	steps := []report.Status{
		report.StatusInvestigating,
		report.StatusResolved,
		report.StatusClosed,
	}
	for _, to := range steps {
		updated, audit, err := svc.Transition(ctx, created.ID, to, "", report.AuthorOfficer)
		if err != nil {
			t.Fatalf("Transition to %s failed: %v", to, err)
		}
		if updated.Status != to {
			t.Errorf("Expected status %s, got %s", to, updated.Status)
		}
		if audit.Author != report.AuthorOfficer {
			t.Errorf("Expected officer author, got %s", audit.Author)
		}
	}

	updates, err := svc.Updates(ctx, created.ID)
	if err != nil {
		t.Fatalf("Updates failed: %v", err)
	}
	if len(updates) != 4 {
		t.Fatalf("Expected 4 audit entries (1 initial + 3 transitions), got %d", len(updates))
	}
	if updates[3].Content != "This report has been closed." {
		t.Errorf("Unexpected final audit content: %q", updates[3].Content)
	}
}

func TestTransitionWithNote(t *testing.T) {
	svc := newTestLifecycle(memory.NewStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{Category: report.CategoryFraud, Lat: 1, Lng: 1})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, audit, err := svc.Transition(ctx, created.ID, report.StatusInvestigating, "Assigned to unit 7.", report.AuthorOfficer)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	want := "Investigation has started on this report. Assigned to unit 7."
	if audit.Content != want {
		t.Errorf("Expected content %q, got %q", want, audit.Content)
	}
}

func TestTransitionInvalid(t *testing.T) {
	tests := []struct {
		name  string
		setup []report.Status
		to    report.Status
	}{
		{"pending to resolved", nil, report.StatusResolved},
		{"pending to closed", nil, report.StatusClosed},
		{"pending to rejected", nil, report.StatusRejected},
		{"resolved to investigating", []report.Status{report.StatusInvestigating, report.StatusResolved}, report.StatusInvestigating},
		{"closed to investigating", []report.Status{report.StatusInvestigating, report.StatusClosed}, report.StatusInvestigating},
		{"closed to pending", []report.Status{report.StatusInvestigating, report.StatusClosed}, report.StatusPending},
		{"closed to closed", []report.Status{report.StatusInvestigating, report.StatusClosed}, report.StatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestLifecycle(memory.NewStore(), nil)
			ctx := context.Background()

			created, err := svc.Create(ctx, report.Report{Category: report.CategoryOther, Lat: 5, Lng: 5})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			for _, step := range tt.setup {
				if _, _, err := svc.Transition(ctx, created.ID, step, "", report.AuthorOfficer); err != nil {
					t.Fatalf("Setup transition to %s failed: %v", step, err)
				}
			}

			_, _, err = svc.Transition(ctx, created.ID, tt.to, "", report.AuthorOfficer)
			var invalid *report.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("Expected InvalidTransitionError, got %v", err)
			}
			if invalid.To != tt.to {
				t.Errorf("Expected error to name target %s, got %s", tt.to, invalid.To)
			}

			// A refused transition must leave no trace.
			updates, err := svc.Updates(ctx, created.ID)
			if err != nil {
				t.Fatalf("Updates failed: %v", err)
			}
			if len(updates) != 1+len(tt.setup) {
				t.Errorf("Expected %d audit entries, got %d", 1+len(tt.setup), len(updates))
			}
		})
	}
}

func TestTransitionConcurrentWriterLoses(t *testing.T) {
	inner := memory.NewStore()
	store := &racingStore{Store: inner, rivalTo: report.StatusInvestigating}
	svc := newTestLifecycle(store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{Category: report.CategoryTheft, Lat: 12, Lng: 12})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The rival commits pending->investigating between this call's
	// validation and its status write, so the write must lose.
	_, _, err = svc.Transition(ctx, created.ID, report.StatusInvestigating, "", report.AuthorOfficer)
	if !errors.Is(err, report.ErrStatusConflict) {
		t.Fatalf("Expected ErrStatusConflict, got %v", err)
	}

	// The losing side must not append an audit entry.
	updates, err := svc.Updates(ctx, created.ID)
	if err != nil {
		t.Fatalf("Updates failed: %v", err)
	}
	if len(updates) != 1 {
		t.Errorf("Expected only the initial audit entry, got %d", len(updates))
	}

	// The rival's status stands.
	current, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.Status != report.StatusInvestigating {
		t.Errorf("Expected rival's status investigating, got %s", current.Status)
	}
}

func TestCompareAndSwapStatusStale(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	r := report.Report{
		ID:        "r1",
		Category:  report.CategoryTheft,
		GeoKey:    "ts5dg",
		Status:    report.StatusInvestigating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Put(ctx, r); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A swap validated against a status the report no longer holds fails
	// and leaves the record untouched.
	_, err := store.CompareAndSwapStatus(ctx, "r1", report.StatusPending, report.StatusInvestigating, now)
	if !errors.Is(err, report.ErrStatusConflict) {
		t.Fatalf("Expected ErrStatusConflict for stale expected status, got %v", err)
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != report.StatusInvestigating {
		t.Errorf("Expected status unchanged after failed swap, got %s", got.Status)
	}

	_, err = store.CompareAndSwapStatus(ctx, "missing", report.StatusPending, report.StatusInvestigating, now)
	if !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing report, got %v", err)
	}
}

func TestTransitionNotFound(t *testing.T) {
	svc := newTestLifecycle(memory.NewStore(), nil)

	_, _, err := svc.Transition(context.Background(), "no-such-id", report.StatusInvestigating, "", report.AuthorOfficer)
	if !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{err: fmt.Errorf("broker unreachable")}
	svc := newTestLifecycle(store, sink)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{Category: report.CategoryTheft, Lat: 10, Lng: 10})
	if err != nil {
		t.Fatalf("Create must succeed despite sink failure: %v", err)
	}

	updated, _, err := svc.Transition(ctx, created.ID, report.StatusInvestigating, "", report.AuthorOfficer)
	if err != nil {
		t.Fatalf("Transition must succeed despite sink failure: %v", err)
	}
	if updated.Status != report.StatusInvestigating {
		t.Errorf("Expected committed status investigating, got %s", updated.Status)
	}
}

func TestSetCoordinateRecomputesKey(t *testing.T) {
	svc := newTestLifecycle(memory.NewStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{Category: report.CategoryTheft, Lat: 23.0225, Lng: 72.5714})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Move to San Francisco; the key must follow the coordinate.
	updated, err := svc.SetCoordinate(ctx, created.ID, 37.7749, -122.4194)
	if err != nil {
		t.Fatalf("SetCoordinate failed: %v", err)
	}
	if updated.GeoKey != "9q8yy" {
		t.Errorf("Expected recomputed key 9q8yy, got %s", updated.GeoKey)
	}
	if updated.Lat != 37.7749 || updated.Lng != -122.4194 {
		t.Errorf("Coordinate not updated: %v, %v", updated.Lat, updated.Lng)
	}

	if _, err := svc.SetCoordinate(ctx, created.ID, -91, 0); err == nil {
		t.Error("Expected error for out-of-range latitude")
	}
}

func TestDeleteCascades(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	svc := newTestLifecycle(store, sink)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{Category: report.CategoryVandalism, Lat: 30, Lng: 30})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.AddMediaRef(ctx, report.MediaRef{ID: "m1", ReportID: created.ID, URL: "https://media.example/1.jpg"}); err != nil {
		t.Fatalf("AddMediaRef failed: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	media, err := store.ListMedia(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListMedia failed: %v", err)
	}
	if len(media) != 0 {
		t.Errorf("Expected media references gone, got %d", len(media))
	}

	last := sink.events[len(sink.events)-1]
	if last.Kind != "deleted" {
		t.Errorf("Expected deleted event, got %s", last.Kind)
	}
}

func TestDeleteFailClosed(t *testing.T) {
	inner := memory.NewStore()
	store := &failingStore{Store: inner, failDeleteMedia: true}
	svc := newTestLifecycle(store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, report.Report{Category: report.CategoryBurglary, Lat: 40, Lng: 40})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err == nil {
		t.Fatal("Expected Delete to fail when media cleanup fails")
	}

	// The parent record must survive a failed cascade.
	if _, err := svc.Get(ctx, created.ID); err != nil {
		t.Errorf("Expected report to survive failed cascade, got %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	svc := newTestLifecycle(memory.NewStore(), nil)

	if err := svc.Delete(context.Background(), "no-such-id"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
