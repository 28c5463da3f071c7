package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// tileSize is the pixel size of a web mercator tile.
const tileSize = 256

// worldSize is the web mercator world width in meters.
var worldSize = 2 * math.Pi * orb.EarthRadius

// Viewport is the visible map area.
type Viewport struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`

	// Bounds is [[south, west], [north, east]] when the viewport was fitted.
	Bounds *[2][2]float64 `json:"bounds,omitempty"`
}

// CenterViewport returns the viewport for a fixed center.
func CenterViewport(c Center) Viewport {
	return Viewport{Lat: c.Lat, Lng: c.Lng, Zoom: c.Zoom}
}

// FitBounds returns the viewport that shows b inside a map of the given size,
// keeping padding pixels free on every side. The zoom is the highest integer
// zoom, capped at maxZoom, at which b fits.
func FitBounds(b orb.Bound, size Size, padding, maxZoom int) Viewport {
	lo := project.WGS84.ToMercator(b.Min)
	hi := project.WGS84.ToMercator(b.Max)
	center := project.Mercator.ToWGS84(orb.Point{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2})

	width := float64(size.Width - 2*padding)
	height := float64(size.Height - 2*padding)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dx := (hi[0] - lo[0]) / worldSize
	dy := (hi[1] - lo[1]) / worldSize

	zoom := 0
	for z := maxZoom; z >= 0; z-- {
		scale := tileSize * math.Exp2(float64(z))
		if dx*scale <= width && dy*scale <= height {
			zoom = z
			break
		}
	}

	return Viewport{
		Lat:    center.Lat(),
		Lng:    center.Lon(),
		Zoom:   zoom,
		Bounds: &[2][2]float64{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}},
	}
}
