package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joeblew999/agro-geo/internal/mapview"
)

func newStyles(t *testing.T, dir string) *StyleService {
	t.Helper()
	s, err := NewStyleService(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStyleServiceMissingFile(t *testing.T) {
	s := newStyles(t, t.TempDir())
	table := s.Table()
	if len(table) != 1 || table[mapview.OtraKey] != OtraStyle {
		t.Fatalf("table=%v, want only otra", table)
	}
}

func TestStyleServiceLoadsYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
riego:
  color: "#0d6efd"
  icon: bi-droplet
  nombre: Riego
poda:
  color: "#fd7e14"
  fill: "#fd7e1455"
`
	if err := os.WriteFile(filepath.Join(dir, StylesFile), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	table := newStyles(t, dir).Table()
	if got := table["riego"]; got.Fill != "#0d6efd33" || got.Icon != "bi-droplet" || got.Nombre != "Riego" {
		t.Errorf("riego=%+v", got)
	}
	if got := table["poda"]; got.Fill != "#fd7e1455" {
		t.Errorf("poda=%+v", got)
	}
	if _, ok := table[mapview.OtraKey]; !ok {
		t.Error("otra not injected")
	}
	if got := table.Resolve("cosecha"); got != OtraStyle {
		t.Errorf("cosecha resolved to %+v", got)
	}
}

func TestStyleServiceKeepsConfiguredOtra(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, StylesFile), []byte("otra:\n  color: \"#000000\"\n"), 0644)

	if got := newStyles(t, dir).Table()[mapview.OtraKey]; got.Color != "#000000" {
		t.Fatalf("otra=%+v", got)
	}
}

func TestStyleServiceReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StylesFile)
	os.WriteFile(path, []byte("riego:\n  color: \"#0d6efd\"\n"), 0644)

	s := newStyles(t, dir)
	os.WriteFile(path, []byte("riego:\n  icon: bi-x\n"), 0644)

	if err := s.Reload(); err == nil {
		t.Fatal("expected error for entry without color")
	}
	if s.Table()["riego"].Color != "#0d6efd" {
		t.Fatal("previous table not kept")
	}
}

func TestStyleServiceTableIsCopy(t *testing.T) {
	s := newStyles(t, t.TempDir())
	table := s.Table()
	table["x"] = mapview.StyleEntry{Color: "#fff"}
	if _, ok := s.Table()["x"]; ok {
		t.Fatal("Table exposed internal map")
	}
}

func TestNewStyleServiceInvalidFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, StylesFile), []byte("riego: [\n"), 0644)

	s, err := NewStyleService(dir)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if table := s.Table(); len(table) != 1 || table[mapview.OtraKey] != OtraStyle {
		t.Fatalf("table=%v, want only otra", table)
	}
}
