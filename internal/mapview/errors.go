package mapview

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBounds is returned when a layer has no geometry to fit.
	ErrEmptyBounds = errors.New("mapview: layer has no bounds")

	// ErrFeatureNotFound is returned by Focus for an unknown feature id.
	ErrFeatureNotFound = errors.New("mapview: feature not found")
)

// LoadError reports a failed layer load. The layer keeps its previous contents.
type LoadError struct {
	Layer    LayerName
	Endpoint string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s from %s: %v", e.Layer, e.Endpoint, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
