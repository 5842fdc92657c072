// internal/service/report/index_test.go

package report

import (
	"context"
	"testing"
	"time"

	"kavach/internal/adapter/storage/memory"
	"kavach/internal/domain/report"
	"kavach/internal/geo"
)

func seedReport(t *testing.T, store *memory.Store, id string, category report.Category, lat, lng float64, createdAt time.Time) {
	t.Helper()

	key, err := geo.Encode(lat, lng, geo.DefaultPrecision)
	if err != nil {
		t.Fatalf("Encode(%v, %v) failed: %v", lat, lng, err)
	}
	r := report.Report{
		ID:        id,
		Category:  category,
		Lat:       lat,
		Lng:       lng,
		GeoKey:    key,
		Status:    report.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := store.Put(context.Background(), r); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func TestFindNearby(t *testing.T) {
	store := memory.NewStore()
	idx := NewProximityIndex(store, nil, IndexConfig{})
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// Reports around Ahmedabad, one in Mumbai far outside any sane radius.
	seedReport(t, store, "near-1", report.CategoryTheft, 23.0225, 72.5714, base)
	seedReport(t, store, "near-2", report.CategoryAssault, 23.0350, 72.5850, base)
	seedReport(t, store, "far-1", report.CategoryTheft, 19.0760, 72.8777, base)

	results, err := idx.FindNearby(ctx, 23.03, 72.58, 5, report.NearbyFilter{}, 0)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, n := range results {
		if n.Report.ID == "far-1" {
			t.Error("Mumbai report must not appear within 5km of Ahmedabad")
		}
		if n.DistanceKm > 5 {
			t.Errorf("Report %s outside radius: %v km", n.Report.ID, n.DistanceKm)
		}
	}

	// near-1 is about 1.21km from the center.
	var nearOne *report.Nearby
	for i := range results {
		if results[i].Report.ID == "near-1" {
			nearOne = &results[i]
		}
	}
	if nearOne == nil {
		t.Fatal("Expected near-1 in results")
	}
	if nearOne.DistanceKm < 1.21 || nearOne.DistanceKm > 1.22 {
		t.Errorf("Expected near-1 at ~1.2125 km, got %v", nearOne.DistanceKm)
	}
}

func TestFindNearbyRadiusBoundary(t *testing.T) {
	store := memory.NewStore()
	idx := NewProximityIndex(store, nil, IndexConfig{})
	ctx := context.Background()

	seedReport(t, store, "r1", report.CategoryTheft, 23.0225, 72.5714, time.Now())

	// The report sits ~1.2125km from the center: a 1.3km radius keeps it,
	// a 1.1km radius drops it even though both scans hit its geohash cell.
	results, err := idx.FindNearby(ctx, 23.03, 72.58, 1.3, report.NearbyFilter{}, 0)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected report within 1.3km radius, got %d results", len(results))
	}

	results, err = idx.FindNearby(ctx, 23.03, 72.58, 1.1, report.NearbyFilter{}, 0)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected exact distance filter to drop report beyond 1.1km, got %d results", len(results))
	}
}

func TestFindNearbyOrdering(t *testing.T) {
	store := memory.NewStore()
	idx := NewProximityIndex(store, nil, IndexConfig{})
	ctx := context.Background()
	base := time.Now()

	seedReport(t, store, "a", report.CategoryTheft, 23.0310, 72.5810, base)
	seedReport(t, store, "b", report.CategoryTheft, 23.0500, 72.6000, base)
	seedReport(t, store, "c", report.CategoryTheft, 23.0301, 72.5801, base)

	results, err := idx.FindNearby(ctx, 23.03, 72.58, 10, report.NearbyFilter{}, 0)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceKm < results[i-1].DistanceKm {
			t.Errorf("Results not ordered by distance: %v before %v",
				results[i-1].DistanceKm, results[i].DistanceKm)
		}
	}
	if results[0].Report.ID != "c" {
		t.Errorf("Expected nearest report first, got %s", results[0].Report.ID)
	}
}

func TestFindNearbyFilters(t *testing.T) {
	store := memory.NewStore()
	idx := NewProximityIndex(store, nil, IndexConfig{})
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	seedReport(t, store, "old-theft", report.CategoryTheft, 23.0225, 72.5714, old)
	seedReport(t, store, "new-theft", report.CategoryTheft, 23.0230, 72.5720, recent)
	seedReport(t, store, "new-fraud", report.CategoryFraud, 23.0235, 72.5725, recent)

	t.Run("category", func(t *testing.T) {
		results, err := idx.FindNearby(ctx, 23.03, 72.58, 5, report.NearbyFilter{Category: report.CategoryTheft}, 0)
		if err != nil {
			t.Fatalf("FindNearby failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 theft reports, got %d", len(results))
		}
		for _, n := range results {
			if n.Report.Category != report.CategoryTheft {
				t.Errorf("Unexpected category %s", n.Report.Category)
			}
		}
	})

	t.Run("since", func(t *testing.T) {
		since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		results, err := idx.FindNearby(ctx, 23.03, 72.58, 5, report.NearbyFilter{Since: since}, 0)
		if err != nil {
			t.Fatalf("FindNearby failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 recent reports, got %d", len(results))
		}
		for _, n := range results {
			if n.Report.CreatedAt.Before(since) {
				t.Errorf("Report %s predates the since filter", n.Report.ID)
			}
		}
	})

	t.Run("combined", func(t *testing.T) {
		since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		results, err := idx.FindNearby(ctx, 23.03, 72.58, 5,
			report.NearbyFilter{Since: since, Category: report.CategoryTheft}, 0)
		if err != nil {
			t.Fatalf("FindNearby failed: %v", err)
		}
		if len(results) != 1 || results[0].Report.ID != "new-theft" {
			t.Errorf("Expected only new-theft, got %+v", results)
		}
	})
}

func TestFindNearbyLimit(t *testing.T) {
	store := memory.NewStore()
	idx := NewProximityIndex(store, nil, IndexConfig{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedReport(t, store, string(rune('a'+i)), report.CategoryTheft,
			23.0225+float64(i)*0.001, 72.5714, time.Now())
	}

	results, err := idx.FindNearby(ctx, 23.0225, 72.5714, 10, report.NearbyFilter{}, 2)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected limit of 2 to apply, got %d", len(results))
	}
}

func TestFindNearbyAcrossAntimeridian(t *testing.T) {
	store := memory.NewStore()
	idx := NewProximityIndex(store, nil, IndexConfig{})
	ctx := context.Background()

	// One report on each side of the 180th meridian, both within 20km of
	// a center just west of it. The query unions two key ranges and must
	// return each report exactly once.
	seedReport(t, store, "west-side", report.CategoryTheft, -17.72, 179.90, time.Now())
	seedReport(t, store, "east-side", report.CategoryTheft, -17.72, -179.95, time.Now())

	results, err := idx.FindNearby(ctx, -17.72, 179.95, 20, report.NearbyFilter{}, 0)
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected both sides of the antimeridian, got %d results", len(results))
	}
	seen := map[string]int{}
	for _, n := range results {
		seen[n.Report.ID]++
		if n.DistanceKm > 20 {
			t.Errorf("Report %s outside radius: %v km", n.Report.ID, n.DistanceKm)
		}
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("Report %s returned %d times, want once", id, count)
		}
	}
}

func TestFindNearbyInvalidInput(t *testing.T) {
	idx := NewProximityIndex(memory.NewStore(), nil, IndexConfig{})
	ctx := context.Background()

	if _, err := idx.FindNearby(ctx, 23.03, 72.58, 0, report.NearbyFilter{}, 0); err == nil {
		t.Error("Expected error for zero radius")
	}
	if _, err := idx.FindNearby(ctx, 23.03, 72.58, -5, report.NearbyFilter{}, 0); err == nil {
		t.Error("Expected error for negative radius")
	}
	if _, err := idx.FindNearby(ctx, 95, 72.58, 5, report.NearbyFilter{}, 0); err == nil {
		t.Error("Expected error for out-of-range latitude")
	}
}
