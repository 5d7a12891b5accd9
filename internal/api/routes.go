// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atlas/internal/cache"
	"github.com/joeblew999/plat-atlas/internal/catalog"
	"github.com/joeblew999/plat-atlas/internal/geo"
	"github.com/joeblew999/plat-atlas/internal/query"
)

// Types

type LayerPathInput struct {
	Layer string `path:"layer" doc:"Layer name" example:"nsw_lots"`
}

type ViewportInput struct {
	LayerPathInput
	BBox string `query:"bbox" required:"true" doc:"Viewport as minX,minY,maxX,maxY" example:"151.20,-33.88,151.21,-33.87"`
	Zoom int    `query:"zoom" minimum:"0" maximum:"23" default:"15" doc:"Map zoom level"`
}

type QueryInput struct {
	ViewportInput
	Cap int `query:"cap" minimum:"0" doc:"Feature cap override (0 = layer default)"`
}

type TileInput struct {
	LayerPathInput
	TileID string `path:"tileId" doc:"Tile ID from the tiles endpoint" example:"z16_r0_c2"`
	BBox   string `query:"bbox" required:"true" doc:"Tile sub-box as minX,minY,maxX,maxY"`
	Zoom   int    `query:"zoom" minimum:"0" maximum:"23" default:"15" doc:"Map zoom level"`
}

type PointInput struct {
	Lon    float64 `query:"lon" required:"true" doc:"Longitude" example:"151.2093"`
	Lat    float64 `query:"lat" required:"true" doc:"Latitude" example:"-33.8688"`
	Layers string  `query:"layers" required:"true" doc:"Comma-separated layer names" example:"nsw_lots,suburbs"`
}

// FeatureCollectionOutput carries a precomputed GeoJSON payload verbatim, so
// cached responses stay byte-identical.
type FeatureCollectionOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type CatalogBody struct {
	Layers     []catalog.Descriptor `json:"layers" doc:"Available layers ordered by name"`
	Categories map[string][]string  `json:"categories" doc:"Layer names grouped by category"`
	Count      int                  `json:"count" doc:"Number of layers"`
}

type TileInfo struct {
	ID   string     `json:"id" doc:"Stable tile ID"`
	BBox [4]float64 `json:"bbox" doc:"Tile sub-box as [minX,minY,maxX,maxY]"`
}

type TilesBody struct {
	Tiles []TileInfo `json:"tiles"`
	Count int        `json:"count" doc:"Number of tiles"`
}

type CacheStatsBody struct {
	Cache cache.Stats `json:"cache"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *query.Service
}

func NewAPIHandler(svc *query.Service) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCatalog registers catalog listing and rebuild routes.
func (h *APIHandler) RegisterCatalog(api huma.API) {
	huma.Get(api, "/api/v1/catalog", h.GetCatalog, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/layers/{layer}", h.GetLayer, huma.OperationTags("catalog"))
	huma.Post(api, "/api/v1/catalog/rebuild", h.RebuildCatalog, huma.OperationTags("catalog"))
}

// RegisterFeatures registers viewport and point query routes.
func (h *APIHandler) RegisterFeatures(api huma.API) {
	huma.Get(api, "/api/v1/layers/{layer}/features", h.QueryFeatures, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/point", h.QueryPoint, huma.OperationTags("features"))
}

// RegisterTiles registers viewport tiling routes.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/layers/{layer}/tiles", h.GetTiles, huma.OperationTags("tiles"))
	huma.Get(api, "/api/v1/layers/{layer}/tiles/{tileId}", h.GetTile, huma.OperationTags("tiles"))
}

// RegisterCache registers cache introspection routes.
func (h *APIHandler) RegisterCache(api huma.API) {
	huma.Get(api, "/api/v1/cache/stats", h.GetCacheStats, huma.OperationTags("cache"))
	huma.Post(api, "/api/v1/cache/clear", h.ClearCache, huma.OperationTags("cache"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetCatalog(ctx context.Context, input *struct{}) (*struct{ Body CatalogBody }, error) {
	layers := h.svc.Catalog()
	cats := make(map[string][]string)
	for _, d := range layers {
		cats[d.Category] = append(cats[d.Category], d.Name)
	}
	return &struct{ Body CatalogBody }{Body: CatalogBody{
		Layers:     layers,
		Categories: cats,
		Count:      len(layers),
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *LayerPathInput) (*struct{ Body catalog.Descriptor }, error) {
	d, err := h.svc.Layer(input.Layer)
	if err != nil {
		return nil, mapError(err)
	}
	return &struct{ Body catalog.Descriptor }{Body: d}, nil
}

func (h *APIHandler) RebuildCatalog(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Rebuild(); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Catalog rebuilt"}}, nil
}

func (h *APIHandler) QueryFeatures(ctx context.Context, input *QueryInput) (*FeatureCollectionOutput, error) {
	payload, err := h.svc.QueryBBox(ctx, input.Layer, input.BBox, input.Zoom, input.Cap)
	if err != nil {
		return nil, mapError(err)
	}
	return geoJSON(payload), nil
}

func (h *APIHandler) GetTiles(ctx context.Context, input *ViewportInput) (*struct{ Body TilesBody }, error) {
	b, err := geo.ParseBBox(input.BBox)
	if err != nil {
		return nil, mapError(err)
	}
	tiles, err := h.svc.Tiles(input.Layer, b, input.Zoom)
	if err != nil {
		return nil, mapError(err)
	}

	infos := make([]TileInfo, len(tiles))
	for i, t := range tiles {
		infos[i] = TileInfo{
			ID:   t.ID,
			BBox: [4]float64{t.Bound.Min[0], t.Bound.Min[1], t.Bound.Max[0], t.Bound.Max[1]},
		}
	}
	return &struct{ Body TilesBody }{Body: TilesBody{Tiles: infos, Count: len(infos)}}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*FeatureCollectionOutput, error) {
	payload, err := h.svc.QueryTile(ctx, input.Layer, input.TileID, input.BBox, input.Zoom)
	if err != nil {
		return nil, mapError(err)
	}
	return geoJSON(payload), nil
}

func (h *APIHandler) QueryPoint(ctx context.Context, input *PointInput) (*struct{ Body map[string]any }, error) {
	var layers []string
	for _, l := range strings.Split(input.Layers, ",") {
		if l = strings.TrimSpace(l); l != "" {
			layers = append(layers, l)
		}
	}
	if len(layers) == 0 {
		return nil, huma.Error422UnprocessableEntity("layers parameter must name at least one layer")
	}

	results, err := h.svc.QueryPoint(ctx, input.Lon, input.Lat, layers)
	if err != nil {
		return nil, mapError(err)
	}
	body := make(map[string]any, len(results))
	for name, f := range results {
		body[name] = f
	}
	return &struct{ Body map[string]any }{Body: body}, nil
}

func (h *APIHandler) GetCacheStats(ctx context.Context, input *struct{}) (*struct{ Body CacheStatsBody }, error) {
	return &struct{ Body CacheStatsBody }{Body: CacheStatsBody{Cache: h.svc.CacheStats()}}, nil
}

func (h *APIHandler) ClearCache(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	h.svc.ClearCache()
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Cache cleared"}}, nil
}

func geoJSON(payload []byte) *FeatureCollectionOutput {
	return &FeatureCollectionOutput{ContentType: "application/geo+json", Body: payload}
}

// mapError translates the query error taxonomy to HTTP statuses: caller
// errors map to 4xx, infrastructure errors to 5xx.
func mapError(err error) error {
	switch {
	case errors.Is(err, query.ErrUnknownLayer):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, query.ErrInvalidBoundingBox):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, query.ErrBackingUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
