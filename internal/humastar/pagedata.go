package humastar

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PageData holds the Datastar wiring a page template needs: the initial
// signals and the SSE endpoints fetched on load.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// SSEInits holds SSE endpoint URLs opened when the page loads.
	SSEInits []string
}

// NewPageData builds page data from initial signal values and SSE URLs.
func NewPageData(signals map[string]any, sseInits ...string) (PageData, error) {
	if signals == nil {
		signals = map[string]any{}
	}
	data, err := json.Marshal(signals)
	if err != nil {
		return PageData{}, fmt.Errorf("encoding signals: %w", err)
	}
	return PageData{Signals: string(data), SSEInits: sseInits}, nil
}

// DataInit returns a Datastar data-init attribute value joining all SSE init URLs.
// e.g. "@get('/geo/map/stream')"
func (pd PageData) DataInit() string {
	var parts []string
	for _, url := range pd.SSEInits {
		parts = append(parts, fmt.Sprintf("@get('%s')", url))
	}
	return strings.Join(parts, "; ")
}
