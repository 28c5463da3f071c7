package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/agro-geo/internal/mapview"
)

// Source file names inside the sources directory.
const (
	ParcelasFile    = "parcelas.geojson"
	ActividadesFile = "actividades.geojson"
)

// FeatureSource serves the parcel and activity collections from GeoJSON files.
// Files are read on every call, so edits on disk show up on the next request.
type FeatureSource struct {
	sourcesDir string
}

// NewFeatureSource creates a feature source rooted at dataDir/sources.
func NewFeatureSource(dataDir string) *FeatureSource {
	return &FeatureSource{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// Parcelas returns the parcel collection. A missing file is an empty collection.
func (s *FeatureSource) Parcelas() (*geojson.FeatureCollection, error) {
	return s.read(ParcelasFile)
}

// Actividades returns the activity collection. Activities without a geometry
// but with lat/lng properties get a Point geometry.
func (s *FeatureSource) Actividades() (*geojson.FeatureCollection, error) {
	fc, err := s.read(ActividadesFile)
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		if f.Geometry != nil {
			continue
		}
		lat, latOK := f.Properties["lat"].(float64)
		lng, lngOK := f.Properties["lng"].(float64)
		if latOK && lngOK && lat != 0 && lng != 0 {
			f.Geometry = orb.Point{lng, lat}
		}
	}
	return fc, nil
}

// Parcela returns one parcel by id.
func (s *FeatureSource) Parcela(id string) (*geojson.Feature, error) {
	fc, err := s.Parcelas()
	if err != nil {
		return nil, err
	}
	return findFeature(fc, id)
}

// Actividad returns one activity by id.
func (s *FeatureSource) Actividad(id string) (*geojson.Feature, error) {
	fc, err := s.Actividades()
	if err != nil {
		return nil, err
	}
	return findFeature(fc, id)
}

// List returns the source files that exist, with their feature counts.
func (s *FeatureSource) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".geojson" && ext != ".json" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		sf := SourceFile{Name: entry.Name(), Size: formatSize(info.Size())}
		if fc, err := s.read(entry.Name()); err == nil {
			sf.Features = len(fc.Features)
		}
		files = append(files, sf)
	}
	return files, nil
}

func (s *FeatureSource) read(name string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(filepath.Join(s.sourcesDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return geojson.NewFeatureCollection(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return fc, nil
}

func findFeature(fc *geojson.FeatureCollection, id string) (*geojson.Feature, error) {
	for _, f := range fc.Features {
		if mapview.FeatureID(f) == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
