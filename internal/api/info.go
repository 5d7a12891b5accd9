package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	layersDir  string
	layerCount int
}

func NewInfoHandler(layersDir string, layerCount int) *InfoHandler {
	return &InfoHandler{layersDir: layersDir, layerCount: layerCount}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	LayersDir string   `json:"layers_dir" doc:"Layer data directory path"`
	Layers    int      `json:"layers" doc:"Number of catalog layers"`
	Features  []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "plat-atlas",
		Version:   "0.1.0",
		LayersDir: h.layersDir,
		Layers:    h.layerCount,
		Features:  []string{"geoparquet", "spatialite", "duckdb", "tile-cache"},
	}}, nil
}
