package geo

import (
	"math"
	"testing"
)

func TestResolveBoundingBox(t *testing.T) {
	t.Run("mid-latitude box", func(t *testing.T) {
		box, err := ResolveBoundingBox(23.03, 72.58, 5)
		if err != nil {
			t.Fatalf("ResolveBoundingBox() error = %v", err)
		}
		if box.WrapsAntimeridian {
			t.Error("unexpected antimeridian wrap")
		}

		wantLatDelta := 5.0 / 111.32
		if math.Abs((box.MaxLat-box.MinLat)/2-wantLatDelta) > 1e-9 {
			t.Errorf("lat delta = %v, want %v", (box.MaxLat-box.MinLat)/2, wantLatDelta)
		}

		wantLngDelta := 5.0 / (111.32 * math.Cos(23.03*math.Pi/180))
		if math.Abs((box.MaxLng-box.MinLng)/2-wantLngDelta) > 1e-9 {
			t.Errorf("lng delta = %v, want %v", (box.MaxLng-box.MinLng)/2, wantLngDelta)
		}

		if !box.Contains(23.0225, 72.5714) {
			t.Error("box should contain a point ~1.2 km from center")
		}
	})

	t.Run("wraps antimeridian eastward", func(t *testing.T) {
		box, err := ResolveBoundingBox(-17.7, 179.95, 20)
		if err != nil {
			t.Fatalf("ResolveBoundingBox() error = %v", err)
		}
		if !box.WrapsAntimeridian {
			t.Fatal("expected antimeridian wrap")
		}
		if box.MinLng <= box.MaxLng {
			t.Errorf("wrapped box should have MinLng > MaxLng, got %v..%v", box.MinLng, box.MaxLng)
		}
		if !box.Contains(-17.72, -179.95) {
			t.Error("wrapped box should contain a point just across the line")
		}
		if box.Contains(-17.7, 0) {
			t.Error("wrapped box should not contain the prime meridian")
		}
	})

	t.Run("wraps antimeridian westward", func(t *testing.T) {
		box, err := ResolveBoundingBox(-17.7, -179.95, 20)
		if err != nil {
			t.Fatalf("ResolveBoundingBox() error = %v", err)
		}
		if !box.WrapsAntimeridian {
			t.Fatal("expected antimeridian wrap")
		}
	})

	t.Run("clamps at north pole with full longitude range", func(t *testing.T) {
		box, err := ResolveBoundingBox(89.9, 10, 50)
		if err != nil {
			t.Fatalf("ResolveBoundingBox() error = %v", err)
		}
		if box.MaxLat != 90 {
			t.Errorf("MaxLat = %v, want 90", box.MaxLat)
		}
		if box.MinLng != -180 || box.MaxLng != 180 {
			t.Errorf("expected full longitude range near pole, got %v..%v", box.MinLng, box.MaxLng)
		}
		if box.WrapsAntimeridian {
			t.Error("full-range box must not report a wrap")
		}
	})

	t.Run("clamps at south pole", func(t *testing.T) {
		box, err := ResolveBoundingBox(-89.95, -120, 30)
		if err != nil {
			t.Fatalf("ResolveBoundingBox() error = %v", err)
		}
		if box.MinLat != -90 {
			t.Errorf("MinLat = %v, want -90", box.MinLat)
		}
		if box.MinLng != -180 || box.MaxLng != 180 {
			t.Errorf("expected full longitude range near pole, got %v..%v", box.MinLng, box.MaxLng)
		}
	})

	t.Run("zero radius degenerates to a point", func(t *testing.T) {
		box, err := ResolveBoundingBox(12, 34, 0)
		if err != nil {
			t.Fatalf("ResolveBoundingBox() error = %v", err)
		}
		if box.MinLat != 12 || box.MaxLat != 12 || box.MinLng != 34 || box.MaxLng != 34 {
			t.Errorf("zero-radius box = %+v", box)
		}
	})

	t.Run("rejects invalid inputs", func(t *testing.T) {
		if _, err := ResolveBoundingBox(91, 0, 5); err == nil {
			t.Error("expected error for invalid latitude")
		}
		if _, err := ResolveBoundingBox(0, 0, -1); err == nil {
			t.Error("expected error for negative radius")
		}
	})
}
