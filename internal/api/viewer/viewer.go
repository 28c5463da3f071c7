// Package viewer serves the map page and its Datastar SSE stream.
package viewer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/agro-geo/internal/humastar"
	"github.com/joeblew999/agro-geo/internal/mapview"
	"github.com/joeblew999/agro-geo/internal/service"
	"github.com/joeblew999/agro-geo/internal/templates"
	"github.com/joeblew999/agro-geo/pkg/geoclient"
	"github.com/joeblew999/agro-geo/pkg/logger"
)

// DefaultTimeout bounds each layer fetch.
const DefaultTimeout = 30 * time.Second

// Config holds the map view settings.
type Config struct {
	// BackendURL is where the two GeoJSON layers are fetched from.
	BackendURL string
	// Center overrides the default map center; nil keeps the default.
	Center  *mapview.Center
	Timeout time.Duration
}

// Services holds the viewer dependencies.
type Services struct {
	Styles   *service.StyleService
	Features *service.FeatureSource
	Bus      *service.EventBus
	// Fetcher loads the layers; nil means a geoclient for Config.BackendURL.
	Fetcher mapview.Fetcher
}

// Handler serves the map page, the layer stream and focus actions.
type Handler struct {
	humastar.Handler
	cfg Config
	svc Services
}

// New creates a viewer handler.
func New(cfg Config, renderer *templates.Renderer, svc Services) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if svc.Fetcher == nil {
		svc.Fetcher = geoclient.New(cfg.BackendURL, geoclient.WithTimeout(cfg.Timeout))
	}
	if svc.Bus == nil {
		svc.Bus = service.NewEventBus()
	}
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		cfg:     cfg,
		svc:     svc,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, StreamPath, h.Stream, huma.OperationTags("viewer"))
	huma.Post(api, "/geo/map/focus", h.Focus, huma.OperationTags("viewer"))
	huma.Get(api, "/geo/map/events", h.Events, huma.OperationTags("viewer"))
}

// NewMapView builds an empty map view with the current style table.
func (h *Handler) NewMapView() *mapview.MapView {
	var styles mapview.StyleTable
	if h.svc.Styles != nil {
		styles = h.svc.Styles.Table()
	}
	return mapview.New(mapview.Config{Center: h.cfg.Center, Styles: styles}, h.svc.Fetcher)
}

// ServePage serves the map page. The layers arrive later over the stream.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	focus, err := ParseFocus(r.URL.Query().Get("focus"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderPage(w, h.Renderer, h.NewMapView(), PageOptions{Focus: focus}); err != nil {
		logger.FromContext(r.Context()).Error("rendering map page", "error", err)
		http.Error(w, "rendering page", http.StatusInternalServerError)
	}
}

type StreamInput struct {
	Focus string `query:"focus" doc:"Feature to zoom to: parcela:<id> or actividad:<id>"`
}

// Stream loads both layers and pushes each one to the page as soon as its
// own fetch completes.
func (h *Handler) Stream(ctx context.Context, input *StreamInput) (*huma.StreamResponse, error) {
	focus, err := ParseFocus(input.Focus)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return h.Handler.Stream(func(sse humastar.SSE) {
		m := h.NewMapView()
		if err := m.Load(ctx, func(l *mapview.Layer) { h.sendLayer(ctx, sse, m, l) }); err != nil {
			logger.FromContext(ctx).Debug("map stream finished with errors", "error", err)
		}

		if focus.IsZero() {
			return
		}
		if err := m.Focus(focus.Layer, focus.ID); err != nil {
			sse.Error(fmt.Sprintf("%s no encontrada", focus))
			return
		}
		sendViewport(sse, m.Viewport())
	}), nil
}

func (h *Handler) sendLayer(ctx context.Context, sse humastar.SSE, m *mapview.MapView, l *mapview.Layer) {
	snap := l.Snapshot()

	status, err := h.Renderer.Render("layer-status", snap)
	if err != nil {
		logger.FromContext(ctx).Error("rendering layer status", "layer", snap.Name, "error", err)
	} else {
		sse.Patch(status, "#status-"+string(snap.Name))
	}

	ev := service.Event{Layer: string(snap.Name), Count: snap.Count}
	if snap.State == mapview.StateFailed {
		ev.Action, ev.Error = "failed", snap.Error
		sse.DispatchCustomEvent("layer-failed", map[string]any{
			"layer": snap.Name, "error": snap.Error,
		})
		sse.Error(fmt.Sprintf("No se pudo cargar %s", snap.Name))
	} else {
		ev.Action = "loaded"
		sse.DispatchCustomEvent("layer-loaded", snap)
		if v := m.Viewport(); l.Name() == mapview.LayerParcelas && v.Bounds != nil {
			sendViewport(sse, v)
		}
	}
	h.svc.Bus.Publish(ev)
}

func sendViewport(sse humastar.SSE, v mapview.Viewport) {
	sse.Signals(map[string]any{"viewport": v})
	sse.DispatchCustomEvent("map-viewport", v)
}

// Focus zooms the page to the feature named by the "focus" signal.
func (h *Handler) Focus(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	focus, err := ParseFocus(signals.String("focus"))
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if focus.IsZero() {
		return nil, huma.Error400BadRequest("focus is required")
	}

	return h.Handler.Stream(func(sse humastar.SSE) {
		v, err := h.focusViewport(focus)
		if err != nil {
			logger.FromContext(ctx).Info("focus failed", "focus", focus.String(), "error", err)
			sse.Error(fmt.Sprintf("%s no encontrada", focus))
			return
		}
		sendViewport(sse, v)
	}), nil
}

func (h *Handler) focusViewport(focus Focus) (mapview.Viewport, error) {
	if h.svc.Features == nil {
		return mapview.Viewport{}, mapview.ErrFeatureNotFound
	}
	lookup := h.svc.Features.Actividad
	if focus.Layer == mapview.LayerParcelas {
		lookup = h.svc.Features.Parcela
	}
	f, err := lookup(focus.ID)
	if err != nil {
		return mapview.Viewport{}, err
	}
	if f.Geometry == nil {
		return mapview.Viewport{}, mapview.ErrEmptyBounds
	}
	return mapview.FitBounds(f.Geometry.Bound(), mapview.DefaultSize, mapview.DefaultPadding, mapview.DefaultTiles.MaxZoom), nil
}

// Events forwards layer events from every open map stream.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Handler.Stream(func(sse humastar.SSE) {
		ch := h.svc.Bus.Subscribe()
		defer h.svc.Bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				sse.DispatchCustomEvent("layer-event", ev)
			}
		}
	}), nil
}
