// internal/geo/bbox.go

package geo

import (
	"fmt"
	"math"
)

// kmPerDegreeLat is the approximate north-south extent of one degree of
// latitude. Longitude degrees shrink by cos(latitude).
const kmPerDegreeLat = 111.32

// BoundingBox is the minimal axis-aligned lat/lng rectangle containing a
// query circle. It is a transient value, produced fresh per query and never
// persisted.
//
// When the box crosses the antimeridian, MinLng is greater than MaxLng and
// WrapsAntimeridian is set; the caller must issue two range queries, one
// for [MinLng, 180] and one for [-180, MaxLng].
type BoundingBox struct {
	MinLat            float64 `json:"min_lat"`
	MaxLat            float64 `json:"max_lat"`
	MinLng            float64 `json:"min_lng"`
	MaxLng            float64 `json:"max_lng"`
	WrapsAntimeridian bool    `json:"wraps_antimeridian"`
}

// ResolveBoundingBox computes the bounding box for a circle of radiusKm
// around a center point.
//
// Latitude bounds are clamped to ±90. If the circle reaches a pole, or the
// longitude delta degenerates there, longitude is undefined and the box
// spans the full [-180, 180] range. Otherwise longitudes are normalized
// into [-180, 180] and WrapsAntimeridian is set when the box crosses the
// ±180° line.
func ResolveBoundingBox(lat, lng, radiusKm float64) (BoundingBox, error) {
	if err := ValidateCoordinate(lat, lng); err != nil {
		return BoundingBox{}, err
	}
	if radiusKm < 0 {
		return BoundingBox{}, fmt.Errorf("radius must be non-negative, got %v", radiusKm)
	}

	latDelta := radiusKm / kmPerDegreeLat

	box := BoundingBox{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
	}

	touchesPole := false
	if box.MinLat <= -90 {
		box.MinLat = -90
		touchesPole = true
	}
	if box.MaxLat >= 90 {
		box.MaxLat = 90
		touchesPole = true
	}

	cosLat := math.Cos(lat * math.Pi / 180)
	var lngDelta float64
	if cosLat > 1e-9 {
		lngDelta = radiusKm / (kmPerDegreeLat * cosLat)
	} else {
		lngDelta = 180
	}

	if touchesPole || lngDelta >= 180 {
		box.MinLng = -180
		box.MaxLng = 180
		return box, nil
	}

	box.MinLng = normalizeLng(lng - lngDelta)
	box.MaxLng = normalizeLng(lng + lngDelta)
	box.WrapsAntimeridian = box.MinLng > box.MaxLng

	return box, nil
}

// Contains reports whether a point lies inside the box, accounting for
// antimeridian wrap.
func (b BoundingBox) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.WrapsAntimeridian {
		return lng >= b.MinLng || lng <= b.MaxLng
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

// normalizeLng wraps a longitude into [-180, 180].
func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
