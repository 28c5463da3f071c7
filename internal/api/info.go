package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir    string
	backendURL string
	dbOK       bool
}

func NewInfoHandler(dataDir, backendURL string, dbOK bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, backendURL: backendURL, dbOK: dbOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	DataDir    string   `json:"data_dir" doc:"Data directory path"`
	BackendURL string   `json:"backend_url" doc:"Where the map view loads its layers from"`
	DB         bool     `json:"db" doc:"Whether the activity feed database is available"`
	Features   []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "agro-geo",
		Version:    "0.1.0",
		DataDir:    h.dataDir,
		BackendURL: h.backendURL,
		DB:         h.dbOK,
		Features:   []string{"geojson", "mvt", "datastar", "duckdb"},
	}}, nil
}
