package viewer

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/joeblew999/agro-geo/internal/humastar"
	"github.com/joeblew999/agro-geo/internal/mapview"
	"github.com/joeblew999/agro-geo/internal/templates"
)

// StreamPath is the Datastar SSE endpoint the page opens on load.
const StreamPath = "/geo/map/stream"

// PageData is the data of the "page" template.
type PageData struct {
	Title       string
	Height      int
	Page        humastar.PageData
	Parcelas    mapview.LayerSnapshot
	Actividades mapview.LayerSnapshot
	Legend      template.HTML
	Map         MapConfig
	Snapshot    *mapview.Snapshot
}

// MapConfig is the client-side map setup.
type MapConfig struct {
	Center         mapview.Center    `json:"center"`
	Tiles          mapview.TileLayer `json:"tiles"`
	Padding        int               `json:"padding"`
	LegendPosition string            `json:"legendPosition,omitempty"`
}

// PageOptions selects between the live page and a static snapshot.
type PageOptions struct {
	// Focus is forwarded to the stream.
	Focus Focus
	// Static embeds the current layers instead of opening the stream.
	Static bool
}

// RenderPage writes the map page for m.
func RenderPage(w io.Writer, r *templates.Renderer, m *mapview.MapView, opts PageOptions) error {
	snap := m.Snapshot()

	data := PageData{
		Title:       "Mapa de actividades",
		Height:      m.Size().Height,
		Parcelas:    snap.Parcelas,
		Actividades: snap.Actividades,
		Map: MapConfig{
			Center:  snap.Center,
			Tiles:   snap.Tiles,
			Padding: m.Padding(),
		},
	}

	if snap.Legend != nil {
		html, err := snap.Legend.HTML()
		if err != nil {
			return fmt.Errorf("rendering legend: %w", err)
		}
		data.Legend = html
		data.Map.LegendPosition = snap.Legend.Position
	}

	signals := map[string]any{"error": "", "focus": opts.Focus.String()}
	var inits []string
	if opts.Static {
		data.Snapshot = &snap
	} else {
		stream := StreamPath
		if !opts.Focus.IsZero() {
			stream += "?focus=" + url.QueryEscape(opts.Focus.String())
		}
		inits = append(inits, stream)
	}
	page, err := humastar.NewPageData(signals, inits...)
	if err != nil {
		return err
	}
	data.Page = page

	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, "page", data); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
