// Package tiler renders Mapbox Vector Tiles from GeoJSON on request.
//
// Tiles are built per (z, x, y) from the current feature collection, so edits
// to the source files show up without a rebuild step.
package tiler

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// MaxZoom is the deepest zoom level tiles are rendered for.
const MaxZoom = 22

// ErrInvalidTile is returned for coordinates outside the tile pyramid.
var ErrInvalidTile = errors.New("invalid tile coordinates")

// Tiler renders one named MVT layer.
type Tiler struct {
	layer string
}

// New creates a tiler that writes features into the given MVT layer.
func New(layer string) *Tiler {
	return &Tiler{layer: layer}
}

// Tile returns the gzipped MVT for tile z/x/y. A tile with no features
// returns nil data and no error.
func (t *Tiler) Tile(fc *geojson.FeatureCollection, z, x, y uint32) ([]byte, error) {
	if z > MaxZoom || x >= 1<<z || y >= 1<<z {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, z, x, y)
	}
	if fc == nil {
		return nil, nil
	}
	return t.render(maptile.New(x, y, maptile.Zoom(z)), fc.Features)
}

func (t *Tiler) render(tile maptile.Tile, features []*geojson.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	tileBound := tile.Bound()

	for _, f := range features {
		if f.Geometry == nil || !geometryIntersectsTile(f.Geometry, tileBound) {
			continue
		}

		// Clip and ProjectToTile mutate in place.
		clone := geojson.NewFeature(orb.Clone(f.Geometry))
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		fc.Append(clone)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(t.layer, fc)
	if epsilon := simplifyEpsilon(tile.Z); epsilon > 0 {
		layer.Simplify(simplify.DouglasPeucker(epsilon))
	}
	layer.Clip(tileBound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)

	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// geometryIntersectsTile is stricter than a bound check for points and polygons.
func geometryIntersectsTile(geom orb.Geometry, tileBound orb.Bound) bool {
	if !geom.Bound().Intersects(tileBound) {
		return false
	}

	switch g := geom.(type) {
	case orb.Point:
		return tileBound.Contains(g)

	case orb.MultiPoint:
		for _, p := range g {
			if tileBound.Contains(p) {
				return true
			}
		}
		return false

	case orb.Polygon:
		for _, ring := range g {
			for _, p := range ring {
				if tileBound.Contains(p) {
					return true
				}
			}
		}
		corners := []orb.Point{
			tileBound.Min,
			{tileBound.Max[0], tileBound.Min[1]},
			tileBound.Max,
			{tileBound.Min[0], tileBound.Max[1]},
			tileBound.Center(),
		}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false

	case orb.MultiPolygon:
		for _, poly := range g {
			if geometryIntersectsTile(poly, tileBound) {
				return true
			}
		}
		return false

	default:
		// lines and collections: bound intersection is close enough
		return true
	}
}

// simplifyEpsilon returns the Douglas-Peucker tolerance in degrees.
// Orchard parcels are small, so tolerances stay well under a parcel width.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 14:
		return 0
	case zoom >= 10:
		return 0.00001
	case zoom >= 6:
		return 0.0001
	default:
		return 0.0005
	}
}
