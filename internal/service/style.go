package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/agro-geo/internal/mapview"
)

// StylesFile is the style table file inside the data directory.
const StylesFile = "styles.yaml"

// OtraStyle is always present in the served table.
var OtraStyle = mapview.StyleEntry{Color: "#6c757d", Fill: "#6c757d33", Icon: "bi-gear", Nombre: "Otra"}

// StyleService serves the activity style table loaded from styles.yaml.
type StyleService struct {
	dataDir string
	mu      sync.RWMutex
	table   mapview.StyleTable
}

// NewStyleService creates a style service and loads the table. The service
// is always usable: on a load error it holds only the "otra" entry and the
// error is returned alongside it.
func NewStyleService(dataDir string) (*StyleService, error) {
	s := &StyleService{dataDir: dataDir}
	if err := s.Reload(); err != nil {
		s.table = normalize(nil)
		return s, err
	}
	return s, nil
}

// Path returns the path to the style table file.
func (s *StyleService) Path() string {
	return filepath.Join(s.dataDir, StylesFile)
}

// Table returns a copy of the style table.
func (s *StyleService) Table() mapview.StyleTable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(mapview.StyleTable, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out
}

// Reload re-reads styles.yaml. On error the previous table is kept.
func (s *StyleService) Reload() error {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			s.set(normalize(nil))
			return nil
		}
		return fmt.Errorf("reading %s: %w", StylesFile, err)
	}

	var raw mapview.StyleTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing %s: %w", StylesFile, err)
	}
	for key, entry := range raw {
		if strings.TrimSpace(entry.Color) == "" {
			return fmt.Errorf("parsing %s: tipo %q has no color", StylesFile, key)
		}
	}

	s.set(normalize(raw))
	return nil
}

func (s *StyleService) set(t mapview.StyleTable) {
	s.mu.Lock()
	s.table = t
	s.mu.Unlock()
}

// normalize fills missing fill colors with a translucent version of the
// stroke color and injects the "otra" entry when absent.
func normalize(raw mapview.StyleTable) mapview.StyleTable {
	out := make(mapview.StyleTable, len(raw)+1)
	for key, entry := range raw {
		key = strings.TrimSpace(key)
		if entry.Fill == "" {
			entry.Fill = entry.Color + "33"
		}
		out[key] = entry
	}
	if _, ok := out[mapview.OtraKey]; !ok {
		out[mapview.OtraKey] = OtraStyle
	}
	return out
}
