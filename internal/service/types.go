// Package service contains the read-only data services behind the map API.
package service

import "errors"

// ErrNotFound is returned when a feature id does not exist in a source.
var ErrNotFound = errors.New("feature not found")

// SourceFile represents a GeoJSON source file in the data directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"parcelas.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	Features int    `json:"features" doc:"Number of features in the file" example:"42"`
}

// ActivitySummary is one row of the activity feed.
type ActivitySummary struct {
	ID          string `json:"id" doc:"Activity ID" example:"17"`
	Tipo        string `json:"tipo" doc:"Activity type key" example:"riego"`
	Fecha       string `json:"fecha,omitempty" doc:"Activity date (ISO 8601)" example:"2024-01-01"`
	Parcela     string `json:"parcela,omitempty" doc:"Parcel name" example:"Norte"`
	Descripcion string `json:"descripcion,omitempty" doc:"Free-text description"`
}
