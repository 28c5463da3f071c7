package mapview

// Backend endpoints the layers are loaded from.
const (
	EndpointParcelas    = "/geo/api/parcelas"
	EndpointActividades = "/geo/api/actividades"
)

// Center is the initial map center and zoom.
type Center struct {
	Lat  float64 `json:"lat" yaml:"lat"`
	Lng  float64 `json:"lng" yaml:"lng"`
	Zoom int     `json:"zoom" yaml:"zoom"`
}

// TileLayer describes the base raster tile layer.
type TileLayer struct {
	URL         string `json:"url"`
	MaxZoom     int    `json:"maxZoom"`
	Attribution string `json:"attribution"`
}

// Size is the map element size in pixels, used to fit bounds.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config is the map configuration.
//
// Center and Styles are optional: a nil Center falls back to DefaultCenter, and
// a nil Styles means no style table was supplied (default styling, no legend).
type Config struct {
	Center  *Center
	Styles  StyleTable
	Tiles   TileLayer
	Size    Size
	Padding int // fit-bounds padding in pixels; 0 means DefaultPadding, negative disables it
}

// Defaults.
var (
	DefaultCenter = Center{Lat: -36.82, Lng: -73.05, Zoom: 8}

	DefaultTiles = TileLayer{
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		MaxZoom:     19,
		Attribution: "&copy; OpenStreetMap",
	}

	DefaultSize = Size{Width: 800, Height: 600}
)

// DefaultPadding is the fit-bounds padding in pixels.
const DefaultPadding = 20

func (c Config) withDefaults() Config {
	if c.Center == nil {
		center := DefaultCenter
		c.Center = &center
	}
	if c.Tiles.URL == "" {
		c.Tiles.URL = DefaultTiles.URL
	}
	if c.Tiles.MaxZoom <= 0 {
		c.Tiles.MaxZoom = DefaultTiles.MaxZoom
	}
	if c.Tiles.Attribution == "" {
		c.Tiles.Attribution = DefaultTiles.Attribution
	}
	if c.Size.Width <= 0 || c.Size.Height <= 0 {
		c.Size = DefaultSize
	}
	if c.Padding < 0 {
		c.Padding = 0
	} else if c.Padding == 0 {
		c.Padding = DefaultPadding
	}
	return c
}
