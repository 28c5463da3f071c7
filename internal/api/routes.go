// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/agro-geo/internal/humastar"
	"github.com/joeblew999/agro-geo/internal/mapview"
	"github.com/joeblew999/agro-geo/internal/service"
	"github.com/joeblew999/agro-geo/internal/tiler"
	"github.com/joeblew999/agro-geo/pkg/logger"
)

// GeoJSONType is the media type of feature and collection responses.
const GeoJSONType = "application/geo+json"

// Services holds the service dependencies for API handlers.
type Services struct {
	Features *service.FeatureSource
	Feed     *service.ActivityFeed
	Styles   *service.StyleService
	Tiler    *tiler.Tiler
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Feature id" example:"1"`
}

type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type TileInput struct {
	Z uint32 `path:"z" maximum:"22" doc:"Zoom level"`
	X uint32 `path:"x" doc:"Tile column"`
	Y uint32 `path:"y" doc:"Tile row"`
}

// GeoJSONOutput carries an already encoded GeoJSON document.
type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type TileOutput struct {
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Status          int
	Body            []byte
}

type StylesOutput struct {
	Body mapview.StyleTable
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterParcelas registers parcel routes.
func (h *APIHandler) RegisterParcelas(api huma.API) {
	huma.Register(api, geojsonOperation("get-parcelas", "/geo/api/parcelas", "parcelas",
		"Parcel FeatureCollection"), h.GetParcelas)
	huma.Register(api, geojsonOperation("get-parcela", "/geo/api/parcelas/{id}", "parcelas",
		"One parcel Feature"), h.GetParcela)
	huma.Register(api, huma.Operation{
		OperationID: "get-parcelas-tile",
		Method:      "GET",
		Path:        "/geo/api/parcelas/tiles/{z}/{x}/{y}",
		Summary:     "Parcel vector tile (gzipped MVT)",
		Tags:        []string{"parcelas"},
		Responses: map[string]*huma.Response{
			"200": {Description: "Mapbox Vector Tile", Content: map[string]*huma.MediaType{"application/vnd.mapbox-vector-tile": {}}},
			"204": {Description: "Empty tile"},
		},
	}, h.GetParcelasTile)
}

// RegisterActividades registers activity routes.
func (h *APIHandler) RegisterActividades(api huma.API) {
	huma.Register(api, geojsonOperation("get-actividades", "/geo/api/actividades", "actividades",
		"Activity FeatureCollection, most recent first"), h.GetActividades)
	huma.Get(api, "/geo/api/actividades/lista", h.ListActividades,
		huma.OperationTags("actividades"))
	huma.Register(api, geojsonOperation("get-actividad", "/geo/api/actividades/{id}", "actividades",
		"One activity Feature"), h.GetActividad)
}

// RegisterEstilos registers the style table route.
func (h *APIHandler) RegisterEstilos(api huma.API) {
	huma.Get(api, "/geo/api/estilos", h.GetEstilos, huma.OperationTags("estilos"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

func geojsonOperation(id, path, tag, summary string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      "GET",
		Path:        path,
		Summary:     summary,
		Tags:        []string{tag},
		Responses: map[string]*huma.Response{
			"200": {Description: summary, Content: map[string]*huma.MediaType{GeoJSONType: {}}},
		},
	}
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetParcelas(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	fc, err := h.svc.Features.Parcelas()
	if err != nil {
		return nil, internalError(ctx, "reading parcelas", err)
	}
	return geojsonOutput(ctx, fc)
}

func (h *APIHandler) GetParcela(ctx context.Context, input *IDInput) (*GeoJSONOutput, error) {
	f, err := h.svc.Features.Parcela(input.ID)
	if err != nil {
		return nil, featureError(ctx, "parcela", err)
	}
	return geojsonOutput(ctx, f)
}

func (h *APIHandler) GetActividades(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	fc, err := h.svc.Features.Actividades()
	if err != nil {
		return nil, internalError(ctx, "reading actividades", err)
	}
	recent, err := h.svc.Feed.Recent(ctx, fc)
	if err != nil {
		return nil, internalError(ctx, "ordering actividades", err)
	}
	return geojsonOutput(ctx, recent)
}

func (h *APIHandler) GetActividad(ctx context.Context, input *IDInput) (*GeoJSONOutput, error) {
	f, err := h.svc.Features.Actividad(input.ID)
	if err != nil {
		return nil, featureError(ctx, "actividad", err)
	}
	return geojsonOutput(ctx, f)
}

func (h *APIHandler) ListActividades(ctx context.Context, input *PageInput) (*struct {
	Body humastar.PageBody[service.ActivitySummary]
}, error) {
	fc, err := h.svc.Features.Actividades()
	if err != nil {
		return nil, internalError(ctx, "reading actividades", err)
	}
	items, total, err := h.svc.Feed.Page(ctx, fc, input.Offset, input.Limit)
	if err != nil {
		return nil, internalError(ctx, "paging actividades", err)
	}
	if items == nil {
		items = []service.ActivitySummary{}
	}
	return &struct {
		Body humastar.PageBody[service.ActivitySummary]
	}{Body: humastar.PageBody[service.ActivitySummary]{
		Total: total, Offset: input.Offset, Limit: input.Limit, Data: items,
	}}, nil
}

func (h *APIHandler) GetEstilos(ctx context.Context, input *struct{}) (*StylesOutput, error) {
	return &StylesOutput{Body: h.svc.Styles.Table()}, nil
}

func (h *APIHandler) GetParcelasTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	fc, err := h.svc.Features.Parcelas()
	if err != nil {
		return nil, internalError(ctx, "reading parcelas", err)
	}
	data, err := h.svc.Tiler.Tile(fc, input.Z, input.X, input.Y)
	if err != nil {
		if errors.Is(err, tiler.ErrInvalidTile) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, internalError(ctx, "rendering tile", err)
	}
	if data == nil {
		return &TileOutput{Status: 204}, nil
	}
	return &TileOutput{
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	sources, err := h.svc.Features.List()
	if err != nil {
		logger.FromContext(ctx).Warn("listing sources", "error", err)
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

type marshaler interface {
	MarshalJSON() ([]byte, error)
}

func geojsonOutput(ctx context.Context, v marshaler) (*GeoJSONOutput, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, internalError(ctx, "encoding geojson", err)
	}
	return &GeoJSONOutput{ContentType: GeoJSONType, Body: data}, nil
}

func featureError(ctx context.Context, kind string, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return huma.Error404NotFound(kind + " not found")
	}
	return internalError(ctx, "reading "+kind, err)
}

func internalError(ctx context.Context, msg string, err error) error {
	logger.FromContext(ctx).Error(msg, "error", err)
	return huma.Error500InternalServerError(msg)
}
