// Package source abstracts the backing feature stores. A Source answers one
// question: which raw features intersect a bounding box, carrying only the
// requested attributes. Everything else — repair, reprojection, simplification,
// caching — happens above this package.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrUnavailable reports that a backing store could not be reached or read.
// It is an infrastructure failure, never converted to an empty result.
var ErrUnavailable = errors.New("backing source unavailable")

// Handle is an opaque reference to one layer's backing data, resolved at
// catalog build time and carried on the layer descriptor.
type Handle struct {
	Driver     string // "duckdb", "spatialite" or "memory"
	Path       string // file path (duckdb/spatialite) or dataset key (memory)
	Table      string // table name for spatialite; unused for file reads
	GeomColumn string // geometry column, defaults to "geom"
}

func (h Handle) geomColumn() string {
	if h.GeomColumn == "" {
		return "geom"
	}
	return h.GeomColumn
}

// RawFeature is one unprocessed record from a backing store. Its geometry is
// still in the source CRS and may be invalid; only the sanitizer may consume
// it.
type RawFeature struct {
	Geometry   orb.Geometry
	Attributes map[string]any
}

// Source loads raw features intersecting a bound. Implementations must push
// the bbox filter down to the store and restrict columns to attrs; they must
// honor ctx cancellation since the transport timeout is owned by the caller.
type Source interface {
	FetchIntersecting(ctx context.Context, h Handle, bound orb.Bound, attrs []string) ([]RawFeature, error)
}

// Registry resolves a Handle's driver to a Source implementation.
type Registry struct {
	sources map[string]Source
}

// NewRegistry returns a registry with the standard file-backed drivers
// registered.
func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]Source)}
	r.Register("duckdb", NewDuckDB())
	r.Register("spatialite", NewSpatiaLite())
	return r
}

// Register adds or replaces a driver.
func (r *Registry) Register(driver string, s Source) {
	r.sources[driver] = s
}

// For returns the Source for a handle's driver.
func (r *Registry) For(h Handle) (Source, error) {
	s, ok := r.sources[h.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: no driver %q", ErrUnavailable, h.Driver)
	}
	return s, nil
}
