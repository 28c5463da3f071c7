package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/agro-geo/internal/api"
	"github.com/joeblew999/agro-geo/internal/api/viewer"
	"github.com/joeblew999/agro-geo/internal/db"
	"github.com/joeblew999/agro-geo/internal/humastar"
	"github.com/joeblew999/agro-geo/internal/mapview"
	"github.com/joeblew999/agro-geo/internal/service"
	"github.com/joeblew999/agro-geo/internal/templates"
	"github.com/joeblew999/agro-geo/internal/tiler"
	"github.com/joeblew999/agro-geo/pkg/logger"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// BackendURL is where the map view fetches its layers; empty means this server.
	BackendURL string
	Center     *mapview.Center
	DB         db.Config
	Logger     *slog.Logger
}

// Server is the agro-geo HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	viewer   *viewer.Handler
	links    humastar.Links
	log      *slog.Logger
}

// New creates a new server.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BackendURL == "" {
		host := cfg.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		cfg.BackendURL = fmt.Sprintf("http://%s:%s", host, cfg.Port)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("agro-geo API", "1.0.0")
	humaConfig.Info.Description = "Parcels and field activities of a farm as GeoJSON, plus the map view that draws them."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}

	// Filled once all routes are registered.
	links := humastar.Links{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)
	humaAPI.UseMiddleware(withLogger(cfg.Logger))

	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	// The activity feed needs DuckDB; without it activities are served unordered.
	conn, err := db.Open(cfg.DB)
	if err != nil {
		cfg.Logger.Warn("duckdb unavailable", "error", err)
	}

	features := service.NewFeatureSource(cfg.DataDir)
	styles, err := service.NewStyleService(cfg.DataDir)
	if err != nil {
		cfg.Logger.Warn("style table not loaded", "path", styles.Path(), "error", err)
	}

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		db:      conn,
		services: &api.Services{
			Features: features,
			Feed:     service.NewActivityFeed(conn, service.DefaultFeedLimit),
			Styles:   styles,
			Tiler:    tiler.New(string(mapview.LayerParcelas)),
		},
		viewer: viewer.New(viewer.Config{
			BackendURL: cfg.BackendURL,
			Center:     cfg.Center,
		}, renderer, viewer.Services{
			Styles:   styles,
			Features: features,
			Bus:      service.NewEventBus(),
		}),
		links: links,
		log:   cfg.Logger,
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Server) routes() {
	// REST API (OpenAPI-documented GeoJSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.config.BackendURL, s.db != nil).RegisterRoutes(s.humaAPI)

	// Map view SSE routes using Huma + Datastar SDK
	s.viewer.RegisterRoutes(s.humaAPI)

	s.links.Discover(s.humaAPI)

	// Page routes
	s.mux.HandleFunc("GET /geo/map", s.viewer.ServePage)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "agro-geo",
		"status":  "running",
		"map":     "/geo/map",
	})
}

// withLogger puts a request-scoped logger into the handler context.
func withLogger(log *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqLog := log.With("method", ctx.Method(), "path", ctx.URL().Path)
		next(huma.WithContext(ctx, logger.ToContext(ctx.Context(), reqLog)))
	}
}
