package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// RoundGeometry returns a copy of g with every coordinate rounded to the given
// number of decimal digits. The input is never mutated; rounding in place
// would corrupt geometry shared with other tiles.
func RoundGeometry(g orb.Geometry, digits int) orb.Geometry {
	scale := math.Pow10(digits)
	round := func(p orb.Point) orb.Point {
		return orb.Point{
			math.Round(p[0]*scale) / scale,
			math.Round(p[1]*scale) / scale,
		}
	}

	switch geom := g.(type) {
	case orb.Point:
		return round(geom)

	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(geom))
		for i, p := range geom {
			out[i] = round(p)
		}
		return out

	case orb.LineString:
		out := make(orb.LineString, len(geom))
		for i, p := range geom {
			out[i] = round(p)
		}
		return out

	case orb.Ring:
		out := make(orb.Ring, len(geom))
		for i, p := range geom {
			out[i] = round(p)
		}
		return out

	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, ring := range geom {
			r := make(orb.Ring, len(ring))
			for j, p := range ring {
				r[j] = round(p)
			}
			out[i] = r
		}
		return out

	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			out[i] = RoundGeometry(poly, digits).(orb.Polygon)
		}
		return out

	default:
		return g
	}
}
