package mapview

import (
	"fmt"
	"html/template"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LayerName identifies one of the map's vector layers.
type LayerName string

const (
	LayerParcelas    LayerName = "parcelas"
	LayerActividades LayerName = "actividades"
)

// LayerState is the load state of a layer.
type LayerState string

const (
	StatePending LayerState = "pending"
	StateLoaded  LayerState = "loaded"
	StateFailed  LayerState = "failed"
)

// MarkerKind tells the browser how to draw a feature.
type MarkerKind string

const (
	MarkerPath   MarkerKind = "path"   // lines and polygons
	MarkerPin    MarkerKind = "marker" // default point marker
	MarkerCircle MarkerKind = "circle" // styled circle marker
)

// RenderedFeature is a feature with its resolved style and popup.
type RenderedFeature struct {
	Feature *geojson.Feature `json:"feature"`
	Style   PathStyle        `json:"style"`
	Marker  MarkerKind       `json:"marker"`
	Popup   template.HTML    `json:"popup,omitempty"`
}

// ID returns the feature's "id" property (or GeoJSON id) as a string.
func (f RenderedFeature) ID() string {
	return FeatureID(f.Feature)
}

// FeatureID returns the "id" property of f, falling back to the GeoJSON id
// member. Numeric ids are formatted without an exponent.
func FeatureID(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	if v, ok := f.Properties["id"]; ok && v != nil {
		return idString(v)
	}
	if f.ID != nil {
		return idString(f.ID)
	}
	return ""
}

func idString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Layer is a vector layer. It is safe for concurrent use.
type Layer struct {
	name   LayerName
	render func(*geojson.Feature) (RenderedFeature, error)

	mu       sync.RWMutex
	features []RenderedFeature
	state    LayerState
	err      error
}

func newLayer(name LayerName, render func(*geojson.Feature) (RenderedFeature, error)) *Layer {
	return &Layer{name: name, render: render, state: StatePending}
}

// Name returns the layer name.
func (l *Layer) Name() LayerName {
	return l.name
}

// Replace clears the layer and populates it from fc. Features without a
// geometry are skipped. It returns the number of features added. A render
// error leaves the layer unchanged.
func (l *Layer) Replace(fc *geojson.FeatureCollection) (int, error) {
	var features []RenderedFeature
	if fc != nil {
		features = make([]RenderedFeature, 0, len(fc.Features))
		for _, f := range fc.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			rf, err := l.render(f)
			if err != nil {
				return 0, fmt.Errorf("rendering feature %q: %w", FeatureID(f), err)
			}
			features = append(features, rf)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.features = features
	l.state = StateLoaded
	l.err = nil
	return len(features), nil
}

// fail marks the layer failed without touching its features.
func (l *Layer) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateFailed
	l.err = err
}

// Features returns a copy of the layer's features.
func (l *Layer) Features() []RenderedFeature {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]RenderedFeature, len(l.features))
	copy(out, l.features)
	return out
}

// Len returns the number of features in the layer.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.features)
}

// State returns the load state and, for failed layers, the load error.
func (l *Layer) State() (LayerState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state, l.err
}

// Bound returns the union of all feature bounds, or ErrEmptyBounds.
// Empty geometries are ignored.
func (l *Layer) Bound() (orb.Bound, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		bound orb.Bound
		found bool
	)
	for _, f := range l.features {
		if isEmptyGeometry(f.Feature.Geometry) {
			continue
		}
		b := f.Feature.Geometry.Bound()
		if !found {
			bound, found = b, true
			continue
		}
		bound = bound.Union(b)
	}
	if !found {
		return orb.Bound{}, ErrEmptyBounds
	}
	return bound, nil
}

// Find returns the feature with the given id.
func (l *Layer) Find(id string) (RenderedFeature, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, f := range l.features {
		if f.ID() == id {
			return f, true
		}
	}
	return RenderedFeature{}, false
}

// LayerSnapshot is a point-in-time copy of a layer for rendering.
type LayerSnapshot struct {
	Name     LayerName         `json:"name"`
	State    LayerState        `json:"state"`
	Error    string            `json:"error,omitempty"`
	Count    int               `json:"count"`
	Features []RenderedFeature `json:"features"`
}

// Snapshot copies the layer state.
func (l *Layer) Snapshot() LayerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := LayerSnapshot{
		Name:     l.name,
		State:    l.state,
		Count:    len(l.features),
		Features: make([]RenderedFeature, len(l.features)),
	}
	copy(snap.Features, l.features)
	if l.err != nil {
		snap.Error = l.err.Error()
	}
	return snap
}

// isEmptyGeometry reports whether g has no coordinates, such as an empty
// MultiPolygon, whose zero bound would stretch a fit out to (0,0).
func isEmptyGeometry(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return true
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		for _, p := range g {
			if len(p) > 0 && len(p[0]) > 0 {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range g {
			if !isEmptyGeometry(c) {
				return false
			}
		}
		return true
	case orb.Bound:
		return false
	default:
		return false
	}
}
