// internal/geo/geohash.go

// Package geo provides the spatial primitives the report index is built on:
// a base-32 geohash codec, great-circle distance, and bounding-box
// resolution for radius queries.
package geo

import (
	"fmt"
	"strings"
)

// base32 is the geohash alphabet. 'a', 'i', 'l' and 'o' are excluded.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

const (
	// DefaultPrecision yields cells with an edge of roughly 5 km, a good
	// match for neighborhood-scale report queries. Changing the precision
	// of an existing index invalidates every stored key, so it is fixed
	// per index.
	DefaultPrecision = 5

	// MaxPrecision is the longest supported key (sub-meter cells).
	MaxPrecision = 12
)

var base32Index [256]int8

func init() {
	for i := range base32Index {
		base32Index[i] = -1
	}
	for i := 0; i < len(base32); i++ {
		base32Index[base32[i]] = int8(i)
	}
}

// InvalidCoordinateError reports a latitude/longitude pair outside the
// valid range. Coordinates are rejected before encoding, never clamped.
type InvalidCoordinateError struct {
	Lat float64
	Lng float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%v lng=%v", e.Lat, e.Lng)
}

// ValidateCoordinate checks that lat is within [-90, 90] and lng within
// [-180, 180].
func ValidateCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return &InvalidCoordinateError{Lat: lat, Lng: lng}
	}
	return nil
}

// Cell is the decoded form of a geohash key: the cell center and the
// half-width error bounds in each axis.
type Cell struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	LatErr float64 `json:"lat_err"`
	LngErr float64 `json:"lng_err"`
}

// Encode converts a coordinate to a geohash key of the given precision.
// Points that are close in space share long common prefixes, which is what
// makes lexicographic range scans over stored keys useful as a coarse
// spatial filter.
//
// The algorithm is the classic interleaved bisection: longitude contributes
// the even bits and latitude the odd bits, each bit halving the remaining
// range, with every 5 bits emitted as one base-32 character.
func Encode(lat, lng float64, precision int) (string, error) {
	if err := ValidateCoordinate(lat, lng); err != nil {
		return "", err
	}
	if precision <= 0 {
		precision = DefaultPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	var key strings.Builder
	key.Grow(precision)

	isEven := true
	bit := 0
	ch := 0

	for key.Len() < precision {
		if isEven {
			mid := (minLng + maxLng) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				minLng = mid
			} else {
				maxLng = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		isEven = !isEven
		bit++
		if bit == 5 {
			key.WriteByte(base32[ch])
			bit = 0
			ch = 0
		}
	}

	return key.String(), nil
}

// Decode converts a geohash key back to the center of the encoded cell and
// its error bounds. The original point that produced the key is always
// within LatErr/LngErr of the returned center.
func Decode(key string) (Cell, error) {
	if key == "" {
		return Cell{}, fmt.Errorf("empty geohash key")
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0
	isEven := true

	for i := 0; i < len(key); i++ {
		cd := base32Index[key[i]]
		if cd < 0 {
			return Cell{}, fmt.Errorf("invalid geohash character %q in key %q", key[i], key)
		}
		for j := 4; j >= 0; j-- {
			bit := (cd >> j) & 1
			if isEven {
				mid := (minLng + maxLng) / 2
				if bit == 1 {
					minLng = mid
				} else {
					maxLng = mid
				}
			} else {
				mid := (minLat + maxLat) / 2
				if bit == 1 {
					minLat = mid
				} else {
					maxLat = mid
				}
			}
			isEven = !isEven
		}
	}

	return Cell{
		Lat:    (minLat + maxLat) / 2,
		Lng:    (minLng + maxLng) / 2,
		LatErr: (maxLat - minLat) / 2,
		LngErr: (maxLng - minLng) / 2,
	}, nil
}

// KeyRange is an inclusive lexicographic range of fixed-length geohash
// keys. Because every key in an index has exactly the index precision,
// plain string comparison orders them correctly.
type KeyRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// KeyRanges derives the geohash key ranges covering a bounding box at the
// given precision: a single range normally, two when the box wraps the
// antimeridian.
//
// The ranges are deliberately approximate. The Z-order interleaving means a
// lexicographic scan between the southwest and northeast corner keys can
// pick up cells outside the box, and cells straddling geohash boundaries
// can sort outside it even though they intersect the box. Callers must
// re-filter candidates by true distance; that post-filter is part of the
// query contract, not an optimization.
func KeyRanges(box BoundingBox, precision int) ([]KeyRange, error) {
	spans := [][2]float64{{box.MinLng, box.MaxLng}}
	if box.WrapsAntimeridian {
		spans = [][2]float64{{box.MinLng, 180}, {-180, box.MaxLng}}
	}

	ranges := make([]KeyRange, 0, len(spans))
	for _, span := range spans {
		start, err := Encode(box.MinLat, span[0], precision)
		if err != nil {
			return nil, err
		}
		end, err := Encode(box.MaxLat, span[1], precision)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, KeyRange{Start: start, End: end})
	}

	return ranges, nil
}
