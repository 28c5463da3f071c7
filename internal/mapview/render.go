package mapview

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

//go:embed templates/*.html
var templateFS embed.FS

var fragments = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type popupData struct {
	Icon        string
	Tipo        string
	Fecha       string
	Parcela     string
	Descripcion string
}

// Popup renders the popup of an activity feature: icon, tipo and fecha, plus
// parcela and descripcion lines only when those properties are present.
// The icon comes from the exact tipo entry only, never from "otra".
func Popup(f *geojson.Feature, styles StyleTable) (template.HTML, error) {
	tipo := propString(f.Properties, "tipo")
	icon := styles[tipo].Icon
	if icon == "" {
		icon = DefaultIcon
	}
	fecha := propString(f.Properties, "fecha")
	if fecha == "" {
		fecha = "-"
	}

	var buf bytes.Buffer
	err := fragments.ExecuteTemplate(&buf, "popup", popupData{
		Icon:        icon,
		Tipo:        tipo,
		Fecha:       fecha,
		Parcela:     propString(f.Properties, "parcela"),
		Descripcion: propString(f.Properties, "descripcion"),
	})
	if err != nil {
		return "", fmt.Errorf("popup: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// propString returns a property as display text. Missing, null, empty,
// false and zero values are all treated as absent.
func propString(props geojson.Properties, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if !v {
			return ""
		}
		return "true"
	default:
		return ""
	}
}

// LegendItem is one row of the legend.
type LegendItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Swatch is the translucent swatch background.
func (i LegendItem) Swatch() string {
	return i.Color + "66"
}

// Legend is the static activity legend control.
type Legend struct {
	Position string       `json:"position"`
	Title    string       `json:"title"`
	Items    []LegendItem `json:"items"`
}

// BuildLegend returns the legend for styles, or nil when no table was given.
// Items are sorted by key with "otra" last.
func BuildLegend(styles StyleTable) *Legend {
	if styles == nil {
		return nil
	}

	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == OtraKey) != (keys[j] == OtraKey) {
			return keys[j] == OtraKey
		}
		return keys[i] < keys[j]
	})

	legend := &Legend{Position: "bottomleft", Title: "Actividades"}
	for _, k := range keys {
		s := styles[k]
		label := s.Nombre
		if label == "" {
			label = k
		}
		legend.Items = append(legend.Items, LegendItem{Key: k, Label: label, Color: s.Color})
	}
	return legend
}

// HTML renders the legend control.
func (l *Legend) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, "legend", l); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
