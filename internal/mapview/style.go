package mapview

// StyleEntry is the display style of one activity type.
type StyleEntry struct {
	Color  string `json:"color" yaml:"color"`
	Fill   string `json:"fill,omitempty" yaml:"fill,omitempty"`
	Icon   string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Nombre string `json:"nombre,omitempty" yaml:"nombre,omitempty"`
}

// StyleTable maps an activity tipo to its style.
type StyleTable map[string]StyleEntry

// OtraKey is the fallback entry for tipos missing from a StyleTable.
const OtraKey = "otra"

// DefaultIcon is used when a tipo has no icon of its own.
const DefaultIcon = "bi-geo"

// DefaultStyle is used when no style table was supplied, or when the table
// has neither the tipo nor an "otra" entry.
var DefaultStyle = StyleEntry{Color: "#6c757d", Fill: "#6c757d33", Icon: DefaultIcon}

// Resolve returns the style for tipo: the exact entry, else the "otra" entry,
// else DefaultStyle. Unknown tipos are never an error.
func (t StyleTable) Resolve(tipo string) StyleEntry {
	if s, ok := t[tipo]; ok {
		return s
	}
	if s, ok := t[OtraKey]; ok {
		return s
	}
	return DefaultStyle
}

// PathStyle is the vector style of a rendered feature.
type PathStyle struct {
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
	Opacity     float64 `json:"opacity,omitempty"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// ParcelStyle is the fixed style of the parcels layer.
var ParcelStyle = PathStyle{
	Color:       "#198754",
	Weight:      2,
	FillColor:   "#19875433",
	FillOpacity: 0.2,
}

// Path returns the vector style for an activity drawn with this entry.
func (s StyleEntry) Path() PathStyle {
	fill := s.Fill
	if fill == "" {
		fill = s.Color
	}
	return PathStyle{
		Color:       s.Color,
		Weight:      3,
		Opacity:     0.9,
		FillColor:   fill,
		FillOpacity: 0.2,
	}
}
