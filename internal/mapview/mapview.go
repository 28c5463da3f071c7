package mapview

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/agro-geo/pkg/logger"
)

// Fetcher loads the two feature collections from EndpointParcelas and
// EndpointActividades. *geoclient.Client implements it.
type Fetcher interface {
	Parcelas(ctx context.Context) (*geojson.FeatureCollection, error)
	Actividades(ctx context.Context) (*geojson.FeatureCollection, error)
}

// MapView is the map state: base tiles, the parcels and activities layers,
// the viewport and the legend. It is safe for concurrent use.
type MapView struct {
	cfg     Config
	fetcher Fetcher
	legend  *Legend

	parcelas    *Layer
	actividades *Layer

	mu       sync.RWMutex
	viewport Viewport
}

// New builds a MapView with empty layers and the configured center.
func New(cfg Config, fetcher Fetcher) *MapView {
	cfg = cfg.withDefaults()
	m := &MapView{
		cfg:      cfg,
		fetcher:  fetcher,
		legend:   BuildLegend(cfg.Styles),
		viewport: CenterViewport(*cfg.Center),
	}
	m.parcelas = newLayer(LayerParcelas, renderParcela)
	m.actividades = newLayer(LayerActividades, m.renderActividad)
	return m
}

// StyleByTipo resolves the style entry of an activity tipo.
func (m *MapView) StyleByTipo(tipo string) StyleEntry {
	return m.cfg.Styles.Resolve(tipo)
}

// Parcelas returns the parcels layer.
func (m *MapView) Parcelas() *Layer { return m.parcelas }

// Actividades returns the activities layer.
func (m *MapView) Actividades() *Layer { return m.actividades }

// Layer returns a layer by name.
func (m *MapView) Layer(name LayerName) (*Layer, bool) {
	switch name {
	case LayerParcelas:
		return m.parcelas, true
	case LayerActividades:
		return m.actividades, true
	}
	return nil, false
}

// Legend returns the legend, or nil when no style table was configured.
func (m *MapView) Legend() *Legend { return m.legend }

// Size returns the map size used to fit bounds.
func (m *MapView) Size() Size { return m.cfg.Size }

// Padding returns the fit-bounds padding in pixels.
func (m *MapView) Padding() int { return m.cfg.Padding }

// Viewport returns the current viewport.
func (m *MapView) Viewport() Viewport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewport
}

func (m *MapView) setViewport(v Viewport) {
	m.mu.Lock()
	m.viewport = v
	m.mu.Unlock()
}

// LoadParcelas fetches the parcels, replaces the layer and fits the viewport
// to the new bounds. A failed fit leaves the viewport unchanged.
func (m *MapView) LoadParcelas(ctx context.Context) error {
	log, ctx := logger.With(ctx, "layer", LayerParcelas)

	fc, err := m.fetcher.Parcelas(ctx)
	if err != nil {
		return m.failed(ctx, m.parcelas, EndpointParcelas, err)
	}
	n, err := m.parcelas.Replace(fc)
	if err != nil {
		return m.failed(ctx, m.parcelas, EndpointParcelas, err)
	}
	log.Info("layer loaded", "features", n)

	if err := m.fitLayer(m.parcelas); err != nil {
		log.Debug("fit bounds skipped", "error", err)
	}
	return nil
}

// LoadActividades fetches the activities and replaces the layer.
func (m *MapView) LoadActividades(ctx context.Context) error {
	log, ctx := logger.With(ctx, "layer", LayerActividades)

	fc, err := m.fetcher.Actividades(ctx)
	if err != nil {
		return m.failed(ctx, m.actividades, EndpointActividades, err)
	}
	n, err := m.actividades.Replace(fc)
	if err != nil {
		return m.failed(ctx, m.actividades, EndpointActividades, err)
	}
	log.Info("layer loaded", "features", n)
	return nil
}

// Load fetches both layers concurrently. Each load applies its own result
// independently of the other; onLayer, if not nil, is called once per layer
// as soon as that layer's load finishes, successful or not. The returned error
// joins the LoadErrors of the failed layers.
func (m *MapView) Load(ctx context.Context, onLayer func(*Layer)) error {
	loads := []struct {
		layer *Layer
		load  func(context.Context) error
	}{
		{m.parcelas, m.LoadParcelas},
		{m.actividades, m.LoadActividades},
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make([]error, len(loads))
	)
	for i, l := range loads {
		g.Go(func() error {
			errs[i] = l.load(ctx)
			if onLayer != nil {
				mu.Lock()
				onLayer(l.layer)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Focus fits the viewport to one feature of a loaded layer.
func (m *MapView) Focus(name LayerName, id string) error {
	layer, ok := m.Layer(name)
	if !ok {
		return ErrFeatureNotFound
	}
	f, ok := layer.Find(id)
	if !ok {
		return ErrFeatureNotFound
	}
	m.fit(f.Feature.Geometry.Bound())
	return nil
}

func (m *MapView) fitLayer(l *Layer) error {
	b, err := l.Bound()
	if err != nil {
		return err
	}
	m.fit(b)
	return nil
}

func (m *MapView) fit(b orb.Bound) {
	m.setViewport(FitBounds(b, m.cfg.Size, m.cfg.Padding, m.cfg.Tiles.MaxZoom))
}

func (m *MapView) failed(ctx context.Context, l *Layer, endpoint string, err error) error {
	loadErr := &LoadError{Layer: l.Name(), Endpoint: endpoint, Err: err}
	l.fail(loadErr)
	logger.FromContext(ctx).Warn("layer load failed", "endpoint", endpoint, "error", err)
	return loadErr
}

// Snapshot is a point-in-time copy of the whole map.
type Snapshot struct {
	Center      Center        `json:"center"`
	Tiles       TileLayer     `json:"tiles"`
	Viewport    Viewport      `json:"viewport"`
	Parcelas    LayerSnapshot `json:"parcelas"`
	Actividades LayerSnapshot `json:"actividades"`
	Legend      *Legend       `json:"legend,omitempty"`
}

// Snapshot copies the map state.
func (m *MapView) Snapshot() Snapshot {
	return Snapshot{
		Center:      *m.cfg.Center,
		Tiles:       m.cfg.Tiles,
		Viewport:    m.Viewport(),
		Parcelas:    m.parcelas.Snapshot(),
		Actividades: m.actividades.Snapshot(),
		Legend:      m.legend,
	}
}

func renderParcela(f *geojson.Feature) (RenderedFeature, error) {
	marker := MarkerPath
	if isPoint(f.Geometry) {
		marker = MarkerPin
	}
	return RenderedFeature{Feature: f, Style: ParcelStyle, Marker: marker}, nil
}

func (m *MapView) renderActividad(f *geojson.Feature) (RenderedFeature, error) {
	tipo := propString(f.Properties, "tipo")
	marker := MarkerPath
	if isPoint(f.Geometry) {
		marker = MarkerCircle
	}
	popup, err := Popup(f, m.cfg.Styles)
	if err != nil {
		return RenderedFeature{}, err
	}
	return RenderedFeature{
		Feature: f,
		Style:   m.StyleByTipo(tipo).Path(),
		Marker:  marker,
		Popup:   popup,
	}, nil
}

func isPoint(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return true
	}
	return false
}
