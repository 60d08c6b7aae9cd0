// Package dashboard wraps a placement store with the document-level state
// of a dashboard: its name, whether it has unsaved changes, and saving to
// and opening from a snapshot database.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/notify"
	"github.com/roach88/dashstore/internal/placement"
	"github.com/roach88/dashstore/internal/store"
	"github.com/roach88/dashstore/internal/txlog"
)

// ErrClosed is returned when saving a dashboard after Close.
var ErrClosed = errors.New("dashboard closed")

// DefaultName is given to dashboards created without a name.
const DefaultName = "Unnamed Dashboard"

// Dashboard is one open dashboard.
//
// Any change set delivered by the store marks the dashboard dirty, including
// undo and redo. Only a change set from a save (source persist) clears it.
type Dashboard struct {
	name   string
	store  *placement.Store
	sub    *notify.Subscription
	dirty  bool
	logger *slog.Logger

	savedSeq int64
}

// New wraps st. An empty name becomes DefaultName. The dashboard starts
// clean.
func New(name string, st *placement.Store, logger *slog.Logger) (*Dashboard, error) {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dashboard{name: name, store: st, logger: logger}

	sub, err := st.ListenTable(st.Schema(), d.onChange)
	if err != nil {
		return nil, fmt.Errorf("new dashboard %q: %w", name, err)
	}
	d.sub = sub
	return d, nil
}

// Open rebuilds a dashboard from the snapshot saved under name. Widgets are
// re-added in saved order, then marked persisted and the history cleared, so
// the freshly opened dashboard is clean and loading cannot be undone.
//
// The store's sequence numbering resumes after the saved seq unless opts
// set a sequencer.
func Open(ctx context.Context, db *store.Store, name string, logger *slog.Logger, opts ...placement.Option) (*Dashboard, error) {
	snap, err := db.LoadSnapshot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open dashboard: %w", err)
	}

	opts = append([]placement.Option{placement.WithSequencer(txlog.NewClockAt(snap.SavedSeq))}, opts...)
	if logger != nil {
		opts = append([]placement.Option{placement.WithLogger(logger)}, opts...)
	}
	st := placement.New(placement.Config{ID: snap.StoreID}, opts...)

	for _, w := range snap.Widgets {
		if err := st.AddWidget(w); err != nil {
			return nil, fmt.Errorf("open dashboard %q: %w", name, err)
		}
	}
	if _, err := st.MarkPersisted(); err != nil {
		return nil, fmt.Errorf("open dashboard %q: %w", name, err)
	}
	if _, err := st.Compact(); err != nil {
		return nil, fmt.Errorf("open dashboard %q: %w", name, err)
	}

	d, err := New(name, st, logger)
	if err != nil {
		return nil, err
	}
	d.savedSeq = snap.SavedSeq
	return d, nil
}

// Name returns the dashboard's name.
func (d *Dashboard) Name() string {
	return d.name
}

// SetName renames the dashboard. The next Save writes under the new name;
// the snapshot under the old name is left as is.
func (d *Dashboard) SetName(name string) {
	if name == "" {
		name = DefaultName
	}
	d.name = name
}

// Store returns the placement store the dashboard edits.
func (d *Dashboard) Store() *placement.Store {
	return d.store
}

// Dirty reports whether there are changes since the last save or open.
func (d *Dashboard) Dirty() bool {
	return d.dirty
}

// Save writes the live widgets under the dashboard's name. Only once the
// snapshot is written are the changed flags cleared and removed widgets and
// history dropped; a failed write leaves the dashboard and its records
// exactly as they were.
func (d *Dashboard) Save(ctx context.Context, db *store.Store) error {
	if d.sub.Closed() {
		return fmt.Errorf("save dashboard %q: %w", d.name, ErrClosed)
	}

	snap := store.Snapshot{
		Name:     d.name,
		StoreID:  d.store.ID(),
		SavedSeq: d.store.LastSeq(),
	}
	for w := range d.store.Widgets() {
		w.Changed = false
		snap.Widgets = append(snap.Widgets, w)
	}
	if err := db.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save dashboard %q: %w", d.name, err)
	}

	if _, err := d.store.MarkPersisted(); err != nil {
		return fmt.Errorf("save dashboard %q: %w", d.name, err)
	}
	purged, err := d.store.Compact()
	if err != nil {
		return fmt.Errorf("save dashboard %q: %w", d.name, err)
	}
	d.dirty = false
	d.savedSeq = snap.SavedSeq
	d.logger.Info("dashboard saved",
		"dashboard", d.name,
		"widgets", len(snap.Widgets),
		"purged", purged,
		"seq", snap.SavedSeq,
	)
	return nil
}

// SavedSeq returns the last seq covered by the most recent save or open,
// or 0 if the dashboard was never saved.
func (d *Dashboard) SavedSeq() int64 {
	return d.savedSeq
}

// Close unsubscribes from the store and reports whether the dashboard had
// unsaved changes, so the caller can decide whether to prompt.
func (d *Dashboard) Close() (dirty bool) {
	d.sub.Close()
	return d.dirty
}

func (d *Dashboard) onChange(cs ir.ChangeSet) {
	if cs.Source == ir.SourcePersist {
		d.dirty = false
		return
	}
	d.dirty = true
}
