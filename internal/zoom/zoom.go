// Package zoom maps web-map zoom levels to geometry processing parameters.
//
// Every function here is pure and deterministic. Cache keys incorporate the
// zoom level, so two requests at the same zoom must be simplified and rounded
// identically or cache hits would serve geometry computed under different
// settings.
package zoom

// ToleranceFor returns the Douglas-Peucker simplification tolerance in degrees
// for a zoom level. Non-increasing with zoom: higher zoom keeps more detail.
// Zero means no simplification.
func ToleranceFor(z int) float64 {
	switch {
	case z >= 21:
		return 0
	case z >= 20:
		return 0.000001
	case z >= 19:
		return 0.000005
	case z >= 18:
		return 0.00001
	case z >= 17:
		return 0.00002
	case z >= 16:
		return 0.00005
	case z >= 15:
		return 0.0001
	case z >= 14:
		return 0.0002
	case z >= 12:
		return 0.0005
	default:
		return 0.001
	}
}

// PrecisionFor returns the number of coordinate decimal digits to keep at a
// zoom level. Non-decreasing with zoom. 5 digits is roughly 1 m at the
// equator, 7 digits roughly 1 cm.
func PrecisionFor(z int) int {
	switch {
	case z >= 18:
		return 7
	case z >= 16:
		return 6
	default:
		return 5
	}
}

// KeyGridFor returns the cache-key quantization step in degrees for a zoom
// level. Viewport edges are snapped outward to this grid before keying, so
// small panning jitter maps to the same cache entry instead of always missing.
// Coarser zooms use a coarser grid.
func KeyGridFor(z int) float64 {
	switch {
	case z >= 18:
		return 0.001
	case z >= 16:
		return 0.005
	case z >= 14:
		return 0.02
	default:
		return 0.05
	}
}

// LayerActive reports whether a layer with the given minimum zoom should be
// served at all at zoom z.
func LayerActive(minZoom, z int) bool {
	return z >= minZoom
}
