package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dashstore/internal/ir"
)

// ErrDashboardNotFound is returned when no snapshot exists under a name.
var ErrDashboardNotFound = errors.New("dashboard not found")

// Snapshot is the durable state of one dashboard: its live widgets in
// creation order.
type Snapshot struct {
	Name     string
	StoreID  int64
	SavedSeq int64
	Widgets  []ir.WidgetInfo
}

// Summary describes a saved dashboard without its widgets.
type Summary struct {
	Name        string `json:"name"`
	StoreID     int64  `json:"store_id"`
	WidgetCount int    `json:"widget_count"`
	SavedSeq    int64  `json:"saved_seq"`
}

// SaveSnapshot replaces the snapshot stored under snap.Name. The previous
// widgets are removed and the new ones written in one SQL transaction.
//
// Removed widgets are never part of a snapshot; passing one is an error.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.Name == "" {
		return errors.New("save snapshot: empty dashboard name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dashboards (name, store_id, widget_count, saved_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			store_id = excluded.store_id,
			widget_count = excluded.widget_count,
			saved_seq = excluded.saved_seq
	`, snap.Name, snap.StoreID, len(snap.Widgets), snap.SavedSeq)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", snap.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM widgets WHERE dashboard = ?`, snap.Name); err != nil {
		return fmt.Errorf("save snapshot %q: clear widgets: %w", snap.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO widgets
		(dashboard, ordinal, widget_id, notebook_id, cell_id, "left", "top", width, height, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save snapshot %q: prepare: %w", snap.Name, err)
	}
	defer stmt.Close()

	for i, w := range snap.Widgets {
		if w.Removed {
			return fmt.Errorf("save snapshot %q: widget %q is removed", snap.Name, w.WidgetID)
		}
		record, err := marshalRecord(w)
		if err != nil {
			return fmt.Errorf("save snapshot %q: %w", snap.Name, err)
		}
		_, err = stmt.ExecContext(ctx,
			snap.Name,
			i,
			w.WidgetID,
			w.NotebookID,
			w.CellID,
			w.Left,
			w.Top,
			w.Width,
			w.Height,
			record,
		)
		if err != nil {
			return fmt.Errorf("save snapshot %q: widget %q: %w", snap.Name, w.WidgetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot %q: commit: %w", snap.Name, err)
	}
	return nil
}

// LoadSnapshot reads the snapshot stored under name.
// Returns ErrDashboardNotFound if there is none.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (Snapshot, error) {
	snap := Snapshot{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT store_id, saved_seq FROM dashboards WHERE name = ?
	`, name).Scan(&snap.StoreID, &snap.SavedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("load snapshot %q: %w", name, ErrDashboardNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT widget_id, record
		FROM widgets
		WHERE dashboard = ?
		ORDER BY ordinal ASC
	`, name)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query widgets: %w", err)
	}
	defer rows.Close()

	snap.Widgets = []ir.WidgetInfo{}
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return Snapshot{}, fmt.Errorf("scan widget: %w", err)
		}
		w, err := unmarshalRecord(record)
		if err != nil {
			return Snapshot{}, fmt.Errorf("widget %q: %w", id, err)
		}
		if w.WidgetID != id {
			return Snapshot{}, fmt.Errorf("widget %q: record carries id %q", id, w.WidgetID)
		}
		snap.Widgets = append(snap.Widgets, w)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate widgets: %w", err)
	}
	return snap, nil
}

// ListDashboards returns a summary of every saved dashboard, by name.
// Returns an empty slice (not nil) when nothing is saved.
func (s *Store) ListDashboards(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, store_id, widget_count, saved_seq
		FROM dashboards
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dashboards: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Name, &sum.StoreID, &sum.WidgetCount, &sum.SavedSeq); err != nil {
			return nil, fmt.Errorf("scan dashboard: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dashboards: %w", err)
	}
	return out, nil
}

// NotebookWidgets returns the saved widgets placed from a notebook, across
// all dashboards, ordered by dashboard then save order.
func (s *Store) NotebookWidgets(ctx context.Context, notebookID string) (map[string][]ir.WidgetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dashboard, record
		FROM widgets
		WHERE notebook_id = ?
		ORDER BY dashboard COLLATE BINARY ASC, ordinal ASC
	`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("query notebook widgets: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]ir.WidgetInfo)
	for rows.Next() {
		var dashboard, record string
		if err := rows.Scan(&dashboard, &record); err != nil {
			return nil, fmt.Errorf("scan widget: %w", err)
		}
		w, err := unmarshalRecord(record)
		if err != nil {
			return nil, err
		}
		out[dashboard] = append(out[dashboard], w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notebook widgets: %w", err)
	}
	return out, nil
}

// DeleteDashboard removes a snapshot and its widgets. Returns false if no
// snapshot existed under name.
func (s *Store) DeleteDashboard(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dashboards WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete dashboard %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete dashboard %q: %w", name, err)
	}
	return n > 0, nil
}
