package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-atlas/internal/geo"
)

// Simplify reduces vertex count with Douglas-Peucker at the given tolerance.
// Validity is preserved: if simplification produces an invalid or empty
// geometry it is re-repaired, and if that also fails the original geometry is
// returned unchanged. A tolerance of zero is a no-op.
func (s *Sanitizer) Simplify(g orb.Geometry, tolerance float64) orb.Geometry {
	if tolerance <= 0 {
		return g
	}
	// Simplifiers mutate in place, so work on a copy.
	out := simplify.DouglasPeucker(tolerance).Simplify(orb.Clone(g))
	return s.validOr(out, g)
}

// SnapPrecision rounds coordinates to the given decimal digits. Snapping can
// collapse near-degenerate rings into invalid shapes; those are repaired or,
// failing that, left at full precision.
func (s *Sanitizer) SnapPrecision(g orb.Geometry, digits int) orb.Geometry {
	out := geo.RoundGeometry(g, digits)
	return s.validOr(out, g)
}

// validOr returns candidate if it is (or can be repaired into) a valid
// polygonal geometry, otherwise fallback.
func (s *Sanitizer) validOr(candidate, fallback orb.Geometry) orb.Geometry {
	p := polygonal(candidate)
	if p == nil {
		return fallback
	}
	if s.Valid(p) {
		return p
	}
	repaired, _, ok := s.repair(p)
	if !ok {
		return fallback
	}
	return repaired
}
