// Package geometry repairs, normalizes and reshapes feature geometry.
//
// The sanitizer is the validity boundary of the system: nothing downstream of
// it may see a raw geometry. Every feature it emits is a valid, non-empty
// polygon or multipolygon in the canonical CRS (EPSG:4326) carrying only the
// attributes the caller passed in.
package geometry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/project"
	log "github.com/sirupsen/logrus"
	geos "github.com/twpayne/go-geos"

	"github.com/joeblew999/plat-atlas/internal/geo"
	"github.com/joeblew999/plat-atlas/internal/source"
)

// Feature is a sanitized feature: valid geometry in EPSG:4326, whitelisted
// attributes, centroid derived from the geometry.
type Feature struct {
	Geometry   orb.Geometry
	Attributes map[string]any
	Centroid   orb.Point
}

// Report counts what sanitization did. It is diagnostic only and never blocks
// the pipeline.
type Report struct {
	Input        int
	Kept         int
	Dropped      int // null, empty or non-polygonal geometry
	Repaired     int
	Unrepairable int
	Duplicates   int
	Reprojected  bool
}

// Sanitizer validates and repairs geometry through GEOS. The embedded context
// serializes GEOS calls internally, so one sanitizer is shared by all
// concurrent queries.
type Sanitizer struct {
	ctx *geos.Context
}

// NewSanitizer creates a sanitizer with its own GEOS context.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{ctx: geos.NewContext()}
}

// Sanitize cleans a raw feature batch from a source in the given EPSG.
// Per feature: drop null/empty, repair invalid (zero-buffer then make-valid),
// drop unrepairable, reproject to EPSG:4326, deduplicate exact
// geometry+attribute matches keeping the first occurrence.
func (s *Sanitizer) Sanitize(raw []source.RawFeature, sourceEPSG int) ([]Feature, Report) {
	rep := Report{Input: len(raw)}
	seen := make(map[string]struct{}, len(raw))
	out := make([]Feature, 0, len(raw))

	for _, rf := range raw {
		g := polygonal(rf.Geometry)
		if g == nil {
			rep.Dropped++
			continue
		}

		g, repaired, ok := s.repair(g)
		if !ok {
			rep.Unrepairable++
			continue
		}
		if repaired {
			rep.Repaired++
		}

		if sourceEPSG != 4326 {
			g = reproject(g, sourceEPSG)
			rep.Reprojected = true
		}

		key := dedupeKey(g, rf.Attributes)
		if _, dup := seen[key]; dup {
			rep.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		out = append(out, Feature{
			Geometry:   g,
			Attributes: rf.Attributes,
			Centroid:   geo.Centroid(g),
		})
	}

	rep.Kept = len(out)
	if rep.Dropped+rep.Unrepairable+rep.Duplicates > 0 {
		log.WithFields(log.Fields{
			"input":        rep.Input,
			"kept":         rep.Kept,
			"dropped":      rep.Dropped,
			"unrepairable": rep.Unrepairable,
			"duplicates":   rep.Duplicates,
		}).Debug("sanitized feature batch")
	}
	return out, rep
}

// repair returns a valid polygonal geometry, whether a repair was needed, and
// whether the geometry is usable at all.
func (s *Sanitizer) repair(g orb.Geometry) (orb.Geometry, bool, bool) {
	gg, err := s.toGeos(g)
	if err != nil {
		return nil, false, false
	}
	defer gg.Destroy()

	if gg.IsEmpty() {
		return nil, false, false
	}
	if gg.IsValid() {
		return g, false, true
	}

	// Zero-distance buffer first: the standard cheap fix for self-touching
	// rings. MakeValid handles what the buffer cannot.
	fixed := gg.Buffer(0, 8)
	if fixed == nil || !fixed.IsValid() || fixed.IsEmpty() {
		if fixed != nil {
			fixed.Destroy()
		}
		fixed = gg.MakeValid()
	}
	if fixed == nil {
		return nil, false, false
	}
	defer fixed.Destroy()
	if !fixed.IsValid() || fixed.IsEmpty() {
		return nil, false, false
	}

	back, err := s.fromGeos(fixed)
	if err != nil {
		return nil, false, false
	}
	back = polygonal(back)
	if back == nil {
		return nil, false, false
	}
	return back, true, true
}

// Valid reports whether a geometry is valid and non-empty per GEOS.
func (s *Sanitizer) Valid(g orb.Geometry) bool {
	gg, err := s.toGeos(g)
	if err != nil {
		return false
	}
	defer gg.Destroy()
	return gg.IsValid() && !gg.IsEmpty()
}

func (s *Sanitizer) toGeos(g orb.Geometry) (*geos.Geom, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, err
	}
	return s.ctx.NewGeomFromWKB(data)
}

func (s *Sanitizer) fromGeos(g *geos.Geom) (orb.Geometry, error) {
	return wkb.Unmarshal(g.ToWKB())
}

// polygonal extracts the polygonal part of a geometry: polygons and
// multipolygons pass through, collections are filtered to their polygonal
// members, everything else (points, lines, nil, empties) yields nil.
func polygonal(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return nil
		}
		return geom
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return nil
		}
		return geom
	case orb.Collection:
		var mp orb.MultiPolygon
		for _, sub := range geom {
			switch p := polygonal(sub).(type) {
			case orb.Polygon:
				mp = append(mp, p)
			case orb.MultiPolygon:
				mp = append(mp, p...)
			}
		}
		switch len(mp) {
		case 0:
			return nil
		case 1:
			return mp[0]
		default:
			return mp
		}
	default:
		return nil
	}
}

// reproject transforms a geometry from a supported source EPSG into WGS84.
// This is an exact coordinate transform, never a repair. GDA94 (4283) is
// datum-aligned with WGS84 well below coordinate precision, so it passes
// through unchanged.
func reproject(g orb.Geometry, fromEPSG int) orb.Geometry {
	switch fromEPSG {
	case 4326, 4283:
		return g
	case 3857:
		return project.Geometry(g, project.Mercator.ToWGS84)
	default:
		// Catalog construction rejects unsupported EPSG codes.
		log.WithField("epsg", fromEPSG).Warn("reproject: unsupported EPSG, passing through")
		return g
	}
}

// dedupeKey identifies a feature by exact geometry bytes plus its canonical
// attribute set.
func dedupeKey(g orb.Geometry, attrs map[string]any) string {
	data, err := wkb.Marshal(g)
	if err != nil {
		data = nil
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.Write(data)
	for _, k := range keys {
		fmt.Fprintf(&sb, "|%s=%v", k, attrs[k])
	}
	return sb.String()
}
