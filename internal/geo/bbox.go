// Package geo holds the small geometric value types and helpers shared by the
// viewport serving pipeline: bounding box parsing and validation, cache-grid
// quantization, coordinate rounding and centroid computation.
//
// All coordinates are WGS84 (EPSG:4326) lon/lat degrees. Sources in other
// reference systems are reprojected by the sanitizer before anything in this
// package sees them.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidBoundingBox is returned for malformed viewport boxes: wrong arity,
// non-finite values, or min > max on either axis. A zero-area box is legal.
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// ParseBBox parses a "minX,minY,maxX,maxY" string into a bound.
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("%w: want minX,minY,maxX,maxY, got %q", ErrInvalidBoundingBox, s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%w: component %d of %q", ErrInvalidBoundingBox, i+1, s)
		}
		vals[i] = v
	}
	b := orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}
	if err := ValidateBound(b); err != nil {
		return orb.Bound{}, err
	}
	return b, nil
}

// ValidateBound rejects NaN/Inf coordinates, coordinates outside world
// bounds, and inverted boxes. The world-bounds check also keeps Quantize's
// float→int64 grid index conversion in range.
func ValidateBound(b orb.Bound) error {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidBoundingBox)
		}
	}
	if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
		return fmt.Errorf("%w: coordinate outside world bounds", ErrInvalidBoundingBox)
	}
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return fmt.Errorf("%w: min exceeds max", ErrInvalidBoundingBox)
	}
	return nil
}

// GridIndices are the integer grid cell coordinates of a quantized bound.
// They identify the bound exactly without float formatting ambiguity, so they
// are what goes into a cache key.
type GridIndices struct {
	MinX, MinY, MaxX, MaxY int64
}

// Quantize snaps a bound outward to a grid of the given step: min edges are
// floored, max edges are ceiled. The snapped bound always covers the input, so
// a payload computed from it is valid for every request that quantizes to the
// same cell range. A degenerate edge landing exactly on a grid line is widened
// by one cell so the result always has positive extent.
func Quantize(b orb.Bound, step float64) (orb.Bound, GridIndices) {
	gi := GridIndices{
		MinX: int64(math.Floor(b.Min[0] / step)),
		MinY: int64(math.Floor(b.Min[1] / step)),
		MaxX: int64(math.Ceil(b.Max[0] / step)),
		MaxY: int64(math.Ceil(b.Max[1] / step)),
	}
	if gi.MaxX == gi.MinX {
		gi.MaxX++
	}
	if gi.MaxY == gi.MinY {
		gi.MaxY++
	}
	snapped := orb.Bound{
		Min: orb.Point{float64(gi.MinX) * step, float64(gi.MinY) * step},
		Max: orb.Point{float64(gi.MaxX) * step, float64(gi.MaxY) * step},
	}
	return snapped, gi
}

// BoundWKT renders a bound as a closed WKT polygon, counterclockwise from the
// min corner. Used for bbox pushdown into SQL backing sources.
func BoundWKT(b orb.Bound) string {
	return fmt.Sprintf("POLYGON((%[1]g %[2]g, %[3]g %[2]g, %[3]g %[4]g, %[1]g %[4]g, %[1]g %[2]g))",
		b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// Centroid returns the area-weighted centroid of a geometry.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}
