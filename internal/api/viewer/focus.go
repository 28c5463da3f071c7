package viewer

import (
	"fmt"
	"strings"

	"github.com/joeblew999/agro-geo/internal/mapview"
)

// Focus selects one parcel or activity to zoom to, written as
// "parcela:<id>" or "actividad:<id>".
type Focus struct {
	Layer mapview.LayerName
	ID    string
}

// IsZero reports whether no focus was requested.
func (f Focus) IsZero() bool {
	return f.ID == ""
}

func (f Focus) String() string {
	if f.IsZero() {
		return ""
	}
	switch f.Layer {
	case mapview.LayerParcelas:
		return "parcela:" + f.ID
	default:
		return "actividad:" + f.ID
	}
}

// ParseFocus parses a focus value. An empty string is the zero Focus.
func ParseFocus(s string) (Focus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Focus{}, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return Focus{}, fmt.Errorf("invalid focus %q: want parcela:<id> or actividad:<id>", s)
	}
	switch kind {
	case "parcela":
		return Focus{Layer: mapview.LayerParcelas, ID: id}, nil
	case "actividad":
		return Focus{Layer: mapview.LayerActividades, ID: id}, nil
	}
	return Focus{}, fmt.Errorf("invalid focus kind %q", kind)
}
