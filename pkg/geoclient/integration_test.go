//go:build integration

// Integration tests against a running server: go run ./cmd/geo
//
// Run: go test -tags=integration ./pkg/geoclient/
package geoclient_test

import (
	"context"
	"os"
	"testing"

	"github.com/joeblew999/agro-geo/pkg/geoclient"
)

func baseURL() string {
	if u := os.Getenv("GEO_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8086"
}

func client() *geoclient.Client {
	return geoclient.New(baseURL())
}

func TestHealth(t *testing.T) {
	var body struct {
		Status string `json:"status"`
	}
	if err := client().GetJSON(context.Background(), "/health", &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestParcelas(t *testing.T) {
	fc, err := client().Parcelas(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Fatalf("type=%q", fc.Type)
	}
}

func TestActividades(t *testing.T) {
	if _, err := client().Actividades(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestEstilosIncludesOtra(t *testing.T) {
	styles, err := client().Styles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := styles["otra"]; !ok {
		t.Fatalf("styles missing otra: %v", styles)
	}
}
