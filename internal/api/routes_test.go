package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atlas/internal/cache"
	"github.com/joeblew999/plat-atlas/internal/catalog"
	"github.com/joeblew999/plat-atlas/internal/query"
	"github.com/joeblew999/plat-atlas/internal/source"
)

func testAPI(t *testing.T) (humatest.TestAPI, *source.Memory) {
	t.Helper()

	mem := source.NewMemory()
	mem.Load("lots", []source.RawFeature{{
		Geometry:   orb.Polygon{{{0.4, 0.4}, {0.6, 0.4}, {0.6, 0.6}, {0.4, 0.6}, {0.4, 0.4}}},
		Attributes: map[string]any{"name": "a"},
	}})

	reg := source.NewRegistry()
	reg.Register("memory", mem)

	cat, err := catalog.New(catalog.StaticBuilder([]catalog.Descriptor{{
		Name:       "lots",
		Category:   "cadastre",
		MinZoom:    12,
		FeatureCap: 100,
		Attributes: []string{"name"},
		Backing:    source.Handle{Driver: "memory", Path: "lots"},
	}}))
	require.NoError(t, err)

	svc := query.New(cat, reg, cache.New(cache.Config{}))

	_, api := humatest.New(t)
	huma.AutoRegister(api, NewAPIHandler(svc))
	return api, mem
}

func TestGetHealth(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ok"`)
}

func TestGetCatalog(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/api/v1/catalog")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Layers     []catalog.Descriptor `json:"layers"`
		Categories map[string][]string  `json:"categories"`
		Count      int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "lots", body.Layers[0].Name)
	assert.Contains(t, body.Categories, "cadastre")
}

func TestGetLayer(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/api/v1/layers/lots")
	require.Equal(t, http.StatusOK, resp.Code)

	var d catalog.Descriptor
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &d))
	assert.Equal(t, "lots", d.Name)
	assert.Equal(t, 12, d.MinZoom)

	resp = api.Get("/api/v1/layers/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestQueryFeaturesOK(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/api/v1/layers/lots/features?bbox=0,0,1,1&zoom=15")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 1)
}

func TestQueryFeaturesErrors(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/api/v1/layers/nope/features?bbox=0,0,1,1&zoom=15")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Get("/api/v1/layers/lots/features?bbox=1,1,0,0&zoom=15")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestQueryFeaturesBackingDown(t *testing.T) {
	api, mem := testAPI(t)
	mem.SetFailing(true)

	resp := api.Get("/api/v1/layers/lots/features?bbox=0,0,1,1&zoom=15")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestGetTilesAndTile(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/api/v1/layers/lots/tiles?bbox=0,0,1,1&zoom=16")
	require.Equal(t, http.StatusOK, resp.Code)

	var body TilesBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, 9, body.Count)

	first := body.Tiles[0]
	url := fmt.Sprintf("/api/v1/layers/lots/tiles/%s?bbox=%g,%g,%g,%g&zoom=16",
		first.ID, first.BBox[0], first.BBox[1], first.BBox[2], first.BBox[3])
	resp = api.Get(url)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestQueryPointEndpoint(t *testing.T) {
	api, _ := testAPI(t)

	resp := api.Get("/api/v1/point?lon=0.5&lat=0.5&layers=lots")
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Contains(t, body, "lots")
	assert.NotEqual(t, "null", string(body["lots"]))
}

func TestCacheEndpoints(t *testing.T) {
	api, _ := testAPI(t)

	api.Get("/api/v1/layers/lots/features?bbox=0,0,1,1&zoom=15")
	api.Get("/api/v1/layers/lots/features?bbox=0,0,1,1&zoom=15")

	resp := api.Get("/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, resp.Code)

	var stats CacheStatsBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Cache.Hits)
	assert.Equal(t, 1, stats.Cache.Items)

	resp = api.Post("/api/v1/cache/clear")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.Get("/api/v1/cache/stats")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Cache.Items)
}
