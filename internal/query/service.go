// Package query orchestrates the viewport feature pipeline: catalog → cache →
// backing source → sanitizer → zoom-driven shaping → GeoJSON encoding.
//
// The service holds no per-request state beyond the stack of each call, so
// callers that abandon a request (viewport moved on) simply drop the result.
// Concurrent misses for the same key may compute the payload twice; the work
// is idempotent and the last Put wins.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"github.com/joeblew999/plat-atlas/internal/cache"
	"github.com/joeblew999/plat-atlas/internal/catalog"
	"github.com/joeblew999/plat-atlas/internal/geo"
	"github.com/joeblew999/plat-atlas/internal/geometry"
	"github.com/joeblew999/plat-atlas/internal/metrics"
	"github.com/joeblew999/plat-atlas/internal/source"
	"github.com/joeblew999/plat-atlas/internal/tilegrid"
	"github.com/joeblew999/plat-atlas/internal/zoom"
)

// pointQueryZoom is the zoom used for point lookups: full precision, no
// simplification, and above every layer's minimum.
const pointQueryZoom = 21

// Service answers viewport and point queries against the catalog's layers.
type Service struct {
	catalog    *catalog.Catalog
	sources    *source.Registry
	cache      *cache.Cache
	san        *geometry.Sanitizer
	defaultCap int
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultFeatureCap overrides the fallback feature cap used when a layer
// descriptor does not carry one.
func WithDefaultFeatureCap(n int) Option {
	return func(s *Service) { s.defaultCap = n }
}

// New wires a query service. All collaborators are injected; nothing here is
// a package-level singleton, so tests run with fresh caches.
func New(cat *catalog.Catalog, reg *source.Registry, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		catalog:    cat,
		sources:    reg,
		cache:      c,
		san:        geometry.NewSanitizer(),
		defaultCap: 5000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog lists the layer descriptors, for building layer-toggle UIs.
func (s *Service) Catalog() []catalog.Descriptor {
	return s.catalog.List()
}

// Layer returns one layer's descriptor.
func (s *Service) Layer(name string) (catalog.Descriptor, error) {
	return s.catalog.Resolve(name)
}

// Rebuild re-scans the catalog.
func (s *Service) Rebuild() error {
	return s.catalog.Rebuild()
}

// CacheStats snapshots the tile cache accounting.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache drops every cached payload.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// QueryBBox parses a "minX,minY,maxX,maxY" string and runs Query.
func (s *Service) QueryBBox(ctx context.Context, layer, bbox string, zoomLevel, featureCap int) ([]byte, error) {
	b, err := geo.ParseBBox(bbox)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, layer, b, zoomLevel, featureCap)
}

// Query returns the encoded GeoJSON FeatureCollection for a layer viewport.
// Repeated calls with the same arguments return byte-identical payloads until
// the cache TTL lapses. An inactive layer at this zoom yields an empty
// collection without touching cache or backing store.
func (s *Service) Query(ctx context.Context, layer string, b orb.Bound, zoomLevel, featureCap int) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.QueryDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if err := geo.ValidateBound(b); err != nil {
		return nil, err
	}
	desc, err := s.catalog.Resolve(layer)
	if err != nil {
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues(layer).Inc()

	if !zoom.LayerActive(desc.MinZoom, zoomLevel) {
		return emptyCollection(), nil
	}

	limit := featureCap
	if limit <= 0 {
		limit = desc.FeatureCap
	}
	if limit <= 0 {
		limit = s.defaultCap
	}

	// The resolved cap is part of the key: payloads are truncated under it,
	// so a request with a different cap must not hit another cap's entry.
	qb, gi := geo.Quantize(b, zoom.KeyGridFor(zoomLevel))
	key := cache.TileKey{
		Layer: layer, Zoom: zoomLevel, Cap: limit,
		MinX: gi.MinX, MinY: gi.MinY, MaxX: gi.MaxX, MaxY: gi.MaxY,
	}

	if payload, ok := s.cache.Get(key); ok {
		return payload, nil
	}

	payload, err := s.compute(ctx, desc, qb, zoomLevel, limit, key)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, payload)
	return payload, nil
}

// compute runs the full miss path. It happens entirely outside the cache
// lock: a slow backing fetch never blocks unrelated cache hits.
func (s *Service) compute(ctx context.Context, desc catalog.Descriptor, qb orb.Bound, zoomLevel, featureCap int, key cache.TileKey) ([]byte, error) {
	rid := shortid.MustGenerate()
	logger := log.WithFields(log.Fields{"rid": rid, "key": key.String()})

	src, err := s.sources.For(desc.Backing)
	if err != nil {
		return nil, err
	}
	raw, err := src.FetchIntersecting(ctx, desc.Backing, qb, desc.Attributes)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", desc.Name, err)
	}

	feats, rep := s.san.Sanitize(raw, desc.SourceEPSG)
	metrics.FeaturesDropped.WithLabelValues("empty").Add(float64(rep.Dropped))
	metrics.FeaturesDropped.WithLabelValues("unrepairable").Add(float64(rep.Unrepairable))
	metrics.FeaturesDropped.WithLabelValues("duplicate").Add(float64(rep.Duplicates))

	tolerance := zoom.ToleranceFor(zoomLevel)
	digits := zoom.PrecisionFor(zoomLevel)
	for i := range feats {
		g := s.san.Simplify(feats[i].Geometry, tolerance)
		g = s.san.SnapPrecision(g, digits)
		feats[i].Geometry = g
		feats[i].Centroid = geo.Centroid(g)
	}

	if len(feats) > featureCap {
		metrics.FeaturesTruncated.Add(float64(len(feats) - featureCap))
		feats = nearestToCenter(feats, qb, featureCap)
	}

	payload, err := encode(feats)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", desc.Name, err)
	}

	logger.WithFields(log.Fields{
		"raw":      rep.Input,
		"kept":     rep.Kept,
		"returned": len(feats),
		"bytes":    len(payload),
	}).Debug("computed tile payload")
	return payload, nil
}

// nearestToCenter keeps exactly n features, those whose centroid is closest
// to the viewport center. Spatial truncation keeps the visible result
// coherent around the focus instead of biased toward one corner.
func nearestToCenter(feats []geometry.Feature, b orb.Bound, n int) []geometry.Feature {
	center := b.Center()
	dist2 := func(p orb.Point) float64 {
		dx, dy := p[0]-center[0], p[1]-center[1]
		return dx*dx + dy*dy
	}
	sort.SliceStable(feats, func(i, j int) bool {
		return dist2(feats[i].Centroid) < dist2(feats[j].Centroid)
	})
	return feats[:n]
}

// Tiles splits a viewport into the progressive-loading grid for a layer. The
// layer name is validated so typos fail fast rather than on the first tile.
func (s *Service) Tiles(layer string, b orb.Bound, zoomLevel int) ([]tilegrid.Tile, error) {
	if err := geo.ValidateBound(b); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Resolve(layer); err != nil {
		return nil, err
	}
	return tilegrid.Split(b, zoomLevel), nil
}

// QueryTile serves one tile of a previously split viewport. The tile id is
// client-side bookkeeping; the sub-box drives the query.
func (s *Service) QueryTile(ctx context.Context, layer, tileID, bbox string, zoomLevel int) ([]byte, error) {
	_ = tileID
	return s.QueryBBox(ctx, layer, bbox, zoomLevel, 0)
}

// QueryPoint looks up the feature containing a point in each named layer.
// It reuses the viewport path with a degenerate zero-area box (quantization
// widens it to the enclosing grid cell) plus an exact containment test, so
// point lookups share the tile cache.
func (s *Service) QueryPoint(ctx context.Context, lon, lat float64, layers []string) (map[string]*geojson.Feature, error) {
	pt := orb.Point{lon, lat}
	b := orb.Bound{Min: pt, Max: pt}
	if err := geo.ValidateBound(b); err != nil {
		return nil, err
	}

	results := make(map[string]*geojson.Feature, len(layers))
	for _, layer := range layers {
		desc, err := s.catalog.Resolve(layer)
		if err != nil {
			return nil, err
		}
		z := pointQueryZoom
		if desc.MinZoom > z {
			z = desc.MinZoom
		}

		payload, err := s.Query(ctx, layer, b, z, 0)
		if err != nil {
			return nil, err
		}
		fc, err := geojson.UnmarshalFeatureCollection(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", layer, err)
		}

		results[layer] = nil
		for _, f := range fc.Features {
			if containsPoint(f.Geometry, pt) {
				results[layer] = f
				break
			}
		}
	}
	return results, nil
}

func containsPoint(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	default:
		return false
	}
}

// encode renders features as a GeoJSON FeatureCollection. encoding/json sorts
// property keys, so equal feature sets encode to identical bytes — the cache
// idempotence guarantee rests on that.
func encode(feats []geometry.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range feats {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Attributes {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}
	return fc.MarshalJSON()
}

func emptyCollection() []byte {
	payload, _ := geojson.NewFeatureCollection().MarshalJSON()
	return payload
}

// ErrBackingUnavailable re-exports the source sentinel so callers can match
// infrastructure failures without importing the source package.
var ErrBackingUnavailable = source.ErrUnavailable

// ErrUnknownLayer and ErrInvalidBoundingBox re-export the caller-error
// sentinels for the same reason.
var (
	ErrUnknownLayer       = catalog.ErrUnknownLayer
	ErrInvalidBoundingBox = geo.ErrInvalidBoundingBox
)
