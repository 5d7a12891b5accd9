// Package server wires the catalog, cache and query service behind HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-atlas/internal/api"
	"github.com/joeblew999/plat-atlas/internal/cache"
	"github.com/joeblew999/plat-atlas/internal/catalog"
	"github.com/joeblew999/plat-atlas/internal/metrics"
	"github.com/joeblew999/plat-atlas/internal/query"
	"github.com/joeblew999/plat-atlas/internal/source"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	LayersDir  string // Directory scanned for layer data files
	MetaFile   string // Optional layers.yaml with per-layer overrides
	Cache      cache.Config
	FeatureCap int // Default per-query feature cap
}

// Server is the atlas HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API
	svc     *query.Service
}

// New creates a new atlas server. It scans the layer directory once up
// front; a scan failure is fatal since the catalog would be empty.
func New(cfg Config) (*Server, error) {
	// Curated NSW descriptors win over the scan for the same files; the scan
	// picks up everything else in the directory.
	build := catalog.Merge(
		catalog.NSWBuilder(cfg.LayersDir),
		catalog.ScanBuilder(cfg.LayersDir, cfg.MetaFile),
	)
	cat, err := catalog.New(build)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	log.WithFields(log.Fields{"dir": cfg.LayersDir, "layers": len(cat.List())}).Info("catalog ready")

	svc := query.New(cat, source.NewRegistry(), cache.New(cfg.Cache),
		query.WithDefaultFeatureCap(cfg.FeatureCap))

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-atlas API", "1.0.0")
	humaConfig.Info.Description = "Spatial feature serving API: layer catalog, viewport queries, tiling and a payload cache."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		svc:     svc,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the server's OpenAPI description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Layers returns the current catalog descriptors.
func (s *Server) Layers() []catalog.Descriptor {
	return s.svc.Catalog()
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.svc))

	info := api.NewInfoHandler(s.config.LayersDir, len(s.svc.Catalog()))
	info.RegisterRoutes(s.humaAPI)

	// Prometheus metrics live outside the OpenAPI surface.
	s.mux.Handle("/metrics", metrics.Handler())

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-atlas",
		"status":  "running",
	})
}
