package service

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/agro-geo/internal/mapview"
)

// DefaultFeedLimit caps the number of activities served on the map.
const DefaultFeedLimit = 500

// ActivityFeed orders activities by date, most recent first. Rows are loaded
// into a connection-scoped temporary DuckDB table for every query.
type ActivityFeed struct {
	db    *sql.DB
	limit int
}

// NewActivityFeed creates an activity feed over an in-memory DuckDB database.
func NewActivityFeed(db *sql.DB, limit int) *ActivityFeed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &ActivityFeed{db: db, limit: limit}
}

// Recent returns the most recent activities of fc, capped at the feed limit.
// Activities without a fecha sort last.
func (f *ActivityFeed) Recent(ctx context.Context, fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	order, _, err := f.order(ctx, fc, 0, f.limit)
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	for _, i := range order {
		out.Append(fc.Features[i])
	}
	return out, nil
}

// Page returns one page of activity summaries and the total count.
func (f *ActivityFeed) Page(ctx context.Context, fc *geojson.FeatureCollection, offset, limit int) ([]ActivitySummary, int, error) {
	order, total, err := f.order(ctx, fc, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	items := make([]ActivitySummary, 0, len(order))
	for _, i := range order {
		feat := fc.Features[i]
		items = append(items, ActivitySummary{
			ID:          mapview.FeatureID(feat),
			Tipo:        feat.Properties.MustString("tipo", ""),
			Fecha:       feat.Properties.MustString("fecha", ""),
			Parcela:     feat.Properties.MustString("parcela", ""),
			Descripcion: feat.Properties.MustString("descripcion", ""),
		})
	}
	return items, total, nil
}

// order returns feature indexes sorted by fecha desc, plus the total row count.
func (f *ActivityFeed) order(ctx context.Context, fc *geojson.FeatureCollection, offset, limit int) ([]int, int, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, 0, nil
	}
	if limit <= 0 || limit > f.limit {
		limit = f.limit
	}
	if offset < 0 {
		offset = 0
	}
	if f.db == nil {
		return orderInMemory(fc, offset, limit), len(fc.Features), nil
	}

	// Temporary tables are per connection, so pin one for the whole query.
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("activity feed: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE OR REPLACE TEMP TABLE feed (idx INTEGER, fecha VARCHAR)`); err != nil {
		return nil, 0, fmt.Errorf("creating feed table: %w", err)
	}
	defer conn.ExecContext(context.Background(), `DROP TABLE IF EXISTS feed`)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("activity feed: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO feed VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, 0, fmt.Errorf("preparing feed insert: %w", err)
	}
	for i, feat := range fc.Features {
		var fecha any
		if s, ok := feat.Properties["fecha"].(string); ok && s != "" {
			fecha = s
		}
		if _, err := stmt.ExecContext(ctx, i, fecha); err != nil {
			stmt.Close()
			tx.Rollback()
			return nil, 0, fmt.Errorf("inserting feed row: %w", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("activity feed: %w", err)
	}

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM feed`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting feed: %w", err)
	}

	query := fmt.Sprintf(`SELECT idx FROM feed ORDER BY fecha DESC NULLS LAST, idx LIMIT %d OFFSET %d`, limit, offset)
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("querying feed: %w", err)
	}
	defer rows.Close()

	var order []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, 0, fmt.Errorf("scanning feed: %w", err)
		}
		order = append(order, idx)
	}
	return order, total, rows.Err()
}

// orderInMemory applies the same ordering as the DuckDB query, for when the
// database could not be opened.
func orderInMemory(fc *geojson.FeatureCollection, offset, limit int) []int {
	idx := make([]int, len(fc.Features))
	fechas := make([]string, len(fc.Features))
	for i, feat := range fc.Features {
		idx[i] = i
		fechas[i], _ = feat.Properties["fecha"].(string)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		fa, fb := fechas[a], fechas[b]
		switch {
		case fa == fb:
			return cmp.Compare(a, b)
		case fa == "":
			return 1
		case fb == "":
			return -1
		}
		return cmp.Compare(fb, fa)
	})

	if offset >= len(idx) {
		return nil
	}
	return idx[offset:min(offset+limit, len(idx))]
}
