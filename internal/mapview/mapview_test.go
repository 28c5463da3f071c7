package mapview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/agro-geo/pkg/logger"
)

// --- Fakes ---

type fakeFetcher struct {
	mu             sync.Mutex
	parcelas       *geojson.FeatureCollection
	actividades    *geojson.FeatureCollection
	parcelasErr    error
	actividadesErr error
}

func (f *fakeFetcher) Parcelas(_ context.Context) (*geojson.FeatureCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parcelas, f.parcelasErr
}

func (f *fakeFetcher) Actividades(_ context.Context) (*geojson.FeatureCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actividades, f.actividadesErr
}

func square(minLng, minLat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLng, minLat},
		{minLng + size, minLat},
		{minLng + size, minLat + size},
		{minLng, minLat + size},
		{minLng, minLat},
	}}
}

func parcelas(polys ...orb.Polygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range polys {
		f := geojson.NewFeature(p)
		f.Properties["id"] = float64(i + 1)
		fc.Append(f)
	}
	return fc
}

func actividad(props map[string]any, geom orb.Geometry) *geojson.FeatureCollection {
	f := geojson.NewFeature(geom)
	for k, v := range props {
		f.Properties[k] = v
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

var riegoStyles = StyleTable{
	"riego": {Color: "#0d6efd", Fill: "#0d6efd33", Icon: "bi-droplet", Nombre: "Riego"},
	"otra":  {Color: "#6c757d", Fill: "#6c757d33", Icon: "bi-gear", Nombre: "Otra"},
}

// --- Styles ---

func TestStyleByTipoWithoutTable(t *testing.T) {
	mv := New(Config{}, &fakeFetcher{})
	got := mv.StyleByTipo("desconocido")
	if got != DefaultStyle {
		t.Fatalf("got %+v, want %+v", got, DefaultStyle)
	}
	if got.Color != "#6c757d" {
		t.Fatalf("color=%q", got.Color)
	}
}

func TestStyleByTipoWithTable(t *testing.T) {
	mv := New(Config{Styles: riegoStyles}, &fakeFetcher{})

	if got := mv.StyleByTipo("riego"); got != riegoStyles["riego"] {
		t.Errorf("riego: got %+v", got)
	}
	if got := mv.StyleByTipo("fumigacion"); got != riegoStyles["otra"] {
		t.Errorf("fumigacion: got %+v, want otra", got)
	}
}

func TestResolveWithoutOtra(t *testing.T) {
	table := StyleTable{"riego": {Color: "#0d6efd"}}
	if got := table.Resolve("poda"); got != DefaultStyle {
		t.Fatalf("got %+v, want DefaultStyle", got)
	}
}

func TestPathStyle(t *testing.T) {
	tests := []struct {
		name  string
		entry StyleEntry
		fill  string
	}{
		{"explicit fill", StyleEntry{Color: "#111111", Fill: "#11111133"}, "#11111133"},
		{"fill from color", StyleEntry{Color: "#222222"}, "#222222"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.entry.Path()
			if p.FillColor != tt.fill {
				t.Errorf("fillColor=%q, want %q", p.FillColor, tt.fill)
			}
			if p.Weight != 3 || p.Opacity != 0.9 || p.FillOpacity != 0.2 {
				t.Errorf("unexpected path style %+v", p)
			}
		})
	}
}

// --- Parcels ---

func TestLoadParcelasFitsViewport(t *testing.T) {
	polys := []orb.Polygon{square(-71.6, -35.7, 0.01), square(-71.5, -35.6, 0.02)}
	f := &fakeFetcher{parcelas: parcelas(polys...)}
	mv := New(Config{}, f)

	if err := mv.LoadParcelas(logger.TestCtx()); err != nil {
		t.Fatal(err)
	}
	if got := mv.Parcelas().Len(); got != len(polys) {
		t.Fatalf("len=%d, want %d", got, len(polys))
	}

	v := mv.Viewport()
	if v.Bounds == nil {
		t.Fatal("viewport was not fitted")
	}
	south, west := v.Bounds[0][0], v.Bounds[0][1]
	north, east := v.Bounds[1][0], v.Bounds[1][1]
	for _, p := range polys {
		for _, pt := range p[0] {
			if pt.Lat() < south || pt.Lat() > north || pt.Lon() < west || pt.Lon() > east {
				t.Errorf("point %v outside viewport bounds %v", pt, *v.Bounds)
			}
		}
	}
	if v.Zoom <= DefaultCenter.Zoom || v.Zoom > DefaultTiles.MaxZoom {
		t.Errorf("zoom=%d", v.Zoom)
	}
	if state, _ := mv.Parcelas().State(); state != StateLoaded {
		t.Errorf("state=%q", state)
	}
}

func TestLoadParcelasEmptyKeepsViewport(t *testing.T) {
	f := &fakeFetcher{parcelas: geojson.NewFeatureCollection()}
	center := &Center{Lat: -35.6751, Lng: -71.543, Zoom: 6}
	mv := New(Config{Center: center}, f)

	if err := mv.LoadParcelas(logger.TestCtx()); err != nil {
		t.Fatalf("empty layer must not be an error: %v", err)
	}
	if got, want := mv.Viewport(), CenterViewport(*center); got.Lat != want.Lat || got.Zoom != want.Zoom || got.Bounds != nil {
		t.Fatalf("viewport=%+v, want %+v", got, want)
	}
}

func TestReplaceDoesNotAccumulate(t *testing.T) {
	f := &fakeFetcher{parcelas: parcelas(square(0, 0, 1), square(2, 2, 1), square(4, 4, 1))}
	mv := New(Config{}, f)
	ctx := logger.TestCtx()

	if err := mv.LoadParcelas(ctx); err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	f.parcelas = parcelas(square(10, 10, 1))
	f.mu.Unlock()
	if err := mv.LoadParcelas(ctx); err != nil {
		t.Fatal(err)
	}

	features := mv.Parcelas().Features()
	if len(features) != 1 {
		t.Fatalf("len=%d, want 1", len(features))
	}
	if b := features[0].Feature.Geometry.Bound(); b.Min[0] != 10 {
		t.Fatalf("stale feature kept: %v", b)
	}
}

func TestReplaceSkipsNullGeometry(t *testing.T) {
	fc := parcelas(square(0, 0, 1))
	fc.Append(&geojson.Feature{Type: "Feature", Properties: geojson.Properties{"id": 9}})

	l := newLayer(LayerParcelas, renderParcela)
	if n, err := l.Replace(fc); err != nil || n != 1 {
		t.Fatalf("n=%d, want 1", n)
	}
}

func TestReplaceRenderErrorKeepsLayer(t *testing.T) {
	boom := errors.New("boom")
	fail := false
	l := newLayer(LayerActividades, func(f *geojson.Feature) (RenderedFeature, error) {
		if fail {
			return RenderedFeature{}, boom
		}
		return renderParcela(f)
	})
	if _, err := l.Replace(parcelas(square(0, 0, 1), square(1, 1, 1))); err != nil {
		t.Fatal(err)
	}

	fail = true
	if _, err := l.Replace(parcelas(square(5, 5, 1))); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if l.Len() != 2 {
		t.Errorf("len=%d, want previous 2", l.Len())
	}
}

func TestLoadFailureKeepsLayer(t *testing.T) {
	f := &fakeFetcher{parcelas: parcelas(square(0, 0, 1), square(1, 1, 1))}
	mv := New(Config{}, f)
	ctx := logger.TestCtx()

	if err := mv.LoadParcelas(ctx); err != nil {
		t.Fatal(err)
	}
	before := mv.Viewport()

	boom := errors.New("connection refused")
	f.mu.Lock()
	f.parcelasErr = boom
	f.mu.Unlock()

	err := mv.LoadParcelas(ctx)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err=%v, want *LoadError", err)
	}
	if loadErr.Endpoint != EndpointParcelas || loadErr.Layer != LayerParcelas {
		t.Errorf("unexpected load error %+v", loadErr)
	}
	if !errors.Is(err, boom) {
		t.Error("LoadError does not unwrap to the fetch error")
	}
	if got := mv.Parcelas().Len(); got != 2 {
		t.Errorf("len=%d, want previous 2", got)
	}
	if state, stateErr := mv.Parcelas().State(); state != StateFailed || stateErr == nil {
		t.Errorf("state=%q err=%v", state, stateErr)
	}
	if mv.Viewport().Zoom != before.Zoom {
		t.Error("viewport changed after failed load")
	}
}

// --- Activities ---

func TestActividadPopup(t *testing.T) {
	f := &fakeFetcher{actividades: actividad(map[string]any{
		"tipo": "riego", "fecha": "2024-01-01",
	}, orb.Point{-71.5, -35.6})}
	mv := New(Config{Styles: riegoStyles}, f)

	if err := mv.LoadActividades(logger.TestCtx()); err != nil {
		t.Fatal(err)
	}
	features := mv.Actividades().Features()
	if len(features) != 1 {
		t.Fatalf("len=%d", len(features))
	}
	rf := features[0]
	popup := string(rf.Popup)
	for _, want := range []string{"riego", "2024-01-01", "bi-droplet"} {
		if !strings.Contains(popup, want) {
			t.Errorf("popup missing %q: %s", want, popup)
		}
	}
	if strings.Contains(popup, "Parcela:") {
		t.Errorf("popup has a parcela line: %s", popup)
	}
	if rf.Marker != MarkerCircle {
		t.Errorf("marker=%q, want circle", rf.Marker)
	}
	if rf.Style.Color != "#0d6efd" {
		t.Errorf("style=%+v", rf.Style)
	}
}

func TestPopupOptionalLines(t *testing.T) {
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties["tipo"] = "poda"
	f.Properties["parcela"] = "Norte"
	f.Properties["descripcion"] = "<script>alert(1)</script>"

	html, err := Popup(f, riegoStyles)
	if err != nil {
		t.Fatal(err)
	}
	popup := string(html)
	if !strings.Contains(popup, "<b>Parcela:</b> Norte") {
		t.Errorf("missing parcela line: %s", popup)
	}
	if strings.Contains(popup, "<script>") {
		t.Errorf("descripcion not escaped: %s", popup)
	}
	if !strings.Contains(popup, "<b>Fecha:</b> -") {
		t.Errorf("missing fecha placeholder: %s", popup)
	}
	// "poda" falls back to "otra" for style, but the icon lookup is exact-key only.
	if !strings.Contains(popup, DefaultIcon) {
		t.Errorf("expected default icon: %s", popup)
	}
}

func TestPolygonActividadUsesPath(t *testing.T) {
	f := &fakeFetcher{actividades: actividad(map[string]any{"tipo": "fumigacion"}, square(0, 0, 1))}
	mv := New(Config{Styles: riegoStyles}, f)
	if err := mv.LoadActividades(logger.TestCtx()); err != nil {
		t.Fatal(err)
	}
	rf := mv.Actividades().Features()[0]
	if rf.Marker != MarkerPath {
		t.Errorf("marker=%q", rf.Marker)
	}
	if rf.Style.Color != riegoStyles["otra"].Color {
		t.Errorf("style=%+v, want otra", rf.Style)
	}
}

// --- Load ---

func TestLoadIsIndependentPerLayer(t *testing.T) {
	f := &fakeFetcher{
		parcelasErr: errors.New("timeout"),
		actividades: actividad(map[string]any{"tipo": "riego"}, orb.Point{1, 1}),
	}
	mv := New(Config{}, f)

	var seen []LayerName
	err := mv.Load(logger.TestCtx(), func(l *Layer) {
		seen = append(seen, l.Name())
	})

	if len(seen) != 2 {
		t.Fatalf("onLayer called %d times, want 2", len(seen))
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Layer != LayerParcelas {
		t.Fatalf("err=%v, want parcelas LoadError", err)
	}
	if mv.Actividades().Len() != 1 {
		t.Fatal("activities not loaded after parcels failure")
	}
	if mv.Parcelas().Len() != 0 {
		t.Fatal("parcels layer should stay empty")
	}
}

func TestLoadBothSucceed(t *testing.T) {
	f := &fakeFetcher{
		parcelas:    parcelas(square(0, 0, 1)),
		actividades: actividad(map[string]any{"tipo": "riego"}, orb.Point{0.5, 0.5}),
	}
	mv := New(Config{}, f)
	if err := mv.Load(logger.TestCtx(), nil); err != nil {
		t.Fatal(err)
	}
	snap := mv.Snapshot()
	if snap.Parcelas.Count != 1 || snap.Actividades.Count != 1 {
		t.Fatalf("snapshot counts %d/%d", snap.Parcelas.Count, snap.Actividades.Count)
	}
}

func TestFocus(t *testing.T) {
	f := &fakeFetcher{parcelas: parcelas(square(0, 0, 10), square(20, 20, 0.001))}
	mv := New(Config{}, f)
	if err := mv.LoadParcelas(logger.TestCtx()); err != nil {
		t.Fatal(err)
	}
	whole := mv.Viewport()

	if err := mv.Focus(LayerParcelas, "2"); err != nil {
		t.Fatal(err)
	}
	if mv.Viewport().Zoom <= whole.Zoom {
		t.Errorf("focus zoom %d not closer than %d", mv.Viewport().Zoom, whole.Zoom)
	}
	if err := mv.Focus(LayerParcelas, "99"); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("err=%v", err)
	}
}

func TestFocusLargeNumericID(t *testing.T) {
	fc := parcelas(square(0, 0, 10), square(20, 20, 0.001))
	fc.Features[1].Properties["id"] = float64(1000000)
	mv := New(Config{}, &fakeFetcher{parcelas: fc})
	if err := mv.LoadParcelas(logger.TestCtx()); err != nil {
		t.Fatal(err)
	}
	if err := mv.Focus(LayerParcelas, "1000000"); err != nil {
		t.Fatal(err)
	}
}

func TestFeatureID(t *testing.T) {
	tests := []struct {
		name string
		prop any
		id   any
		want string
	}{
		{"string property", "p-7", nil, "p-7"},
		{"large number", float64(1000000), nil, "1000000"},
		{"fraction", 2.5, nil, "2.5"},
		{"zero", float64(0), nil, "0"},
		{"geojson id", nil, float64(12345678), "12345678"},
		{"missing", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := geojson.NewFeature(orb.Point{0, 0})
			if tt.prop != nil {
				f.Properties["id"] = tt.prop
			}
			f.ID = tt.id
			if got := FeatureID(f); got != tt.want {
				t.Errorf("FeatureID=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoundSkipsEmptyGeometry(t *testing.T) {
	fc := parcelas(square(10, 10, 1))
	fc.Append(geojson.NewFeature(orb.MultiPolygon{}))

	l := newLayer(LayerParcelas, renderParcela)
	if _, err := l.Replace(fc); err != nil {
		t.Fatal(err)
	}
	b, err := l.Bound()
	if err != nil {
		t.Fatal(err)
	}
	if want := (orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{11, 11}}); !b.Equal(want) {
		t.Errorf("bound=%v, want %v", b, want)
	}

	empty := newLayer(LayerParcelas, renderParcela)
	if _, err := empty.Replace(actividad(nil, orb.MultiPolygon{})); err != nil {
		t.Fatal(err)
	}
	if _, err := empty.Bound(); !errors.Is(err, ErrEmptyBounds) {
		t.Errorf("err=%v, want ErrEmptyBounds", err)
	}
}

// --- Legend ---

func TestLegendAbsentWithoutTable(t *testing.T) {
	mv := New(Config{}, &fakeFetcher{})
	if mv.Legend() != nil {
		t.Fatal("legend built without a style table")
	}
	if mv.Snapshot().Legend != nil {
		t.Fatal("snapshot carries a legend")
	}
}

func TestLegend(t *testing.T) {
	styles := StyleTable{
		"otra":  {Color: "#6c757d", Nombre: "Otra"},
		"riego": {Color: "#0d6efd", Nombre: "Riego"},
		"poda":  {Color: "#fd7e14"},
	}
	legend := BuildLegend(styles)
	if legend == nil {
		t.Fatal("nil legend")
	}

	var labels []string
	for _, it := range legend.Items {
		labels = append(labels, it.Label)
	}
	if got := strings.Join(labels, ","); got != "poda,Riego,Otra" {
		t.Fatalf("labels=%s", got)
	}

	html, err := legend.HTML()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Actividades", "Riego", "poda", "Otra"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("legend html missing %q", want)
		}
	}
}

// --- Viewport ---

func TestFitBoundsPointUsesMaxZoom(t *testing.T) {
	p := orb.Point{-71.5, -35.6}
	v := FitBounds(p.Bound(), DefaultSize, DefaultPadding, 19)
	if v.Zoom != 19 {
		t.Fatalf("zoom=%d, want 19", v.Zoom)
	}
	if v.Lat < -35.6001 || v.Lat > -35.5999 || v.Lng < -71.5001 || v.Lng > -71.4999 {
		t.Fatalf("center=%v,%v", v.Lat, v.Lng)
	}
}

func TestFitBoundsWholeWorld(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-180, -80}, Max: orb.Point{180, 80}}
	if v := FitBounds(b, DefaultSize, DefaultPadding, 19); v.Zoom != 1 {
		t.Fatalf("zoom=%d, want 1", v.Zoom)
	}
}
