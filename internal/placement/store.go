package placement

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/dashstore/internal/identity"
	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/notify"
	"github.com/roach88/dashstore/internal/schema"
	"github.com/roach88/dashstore/internal/table"
	"github.com/roach88/dashstore/internal/txlog"
)

// Store is the widget-placement record store. See the package doc.
type Store struct {
	id       int64
	resolver identity.Resolver
	ids      identity.Generator
	schema   *schema.TableSchema
	logger   *slog.Logger

	maxHistory int
	seq        txlog.Sequencer

	table    *table.Table
	log      *txlog.Log
	notifier *notify.Notifier
}

// New creates an empty store.
//
// Panics if a schema passed with WithSchema does not declare every widget
// field; that is a wiring mistake, not a runtime condition.
func New(cfg Config, opts ...Option) *Store {
	s := &Store{
		id:       cfg.ID,
		resolver: cfg.Resolver,
		ids:      identity.UUIDv7Generator{},
		schema:   schema.Widget(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = identity.NewMetadataResolver(nil)
	}
	for _, f := range ir.WidgetFields {
		if _, ok := s.schema.Field(f); !ok {
			panic(fmt.Sprintf("placement: schema %q does not declare widget field %q", s.schema.Name, f))
		}
	}

	logOpts := []txlog.Option{txlog.WithMaxEntries(s.maxHistory)}
	if s.seq != nil {
		logOpts = append(logOpts, txlog.WithSequencer(s.seq))
	}
	s.table = table.New(s.schema)
	s.log = txlog.New(logOpts...)
	s.notifier = notify.New()
	return s
}

// ID returns the store's namespace id.
func (s *Store) ID() int64 {
	return s.id
}

// Schema returns the schema of the table this store owns.
func (s *Store) Schema() *schema.TableSchema {
	return s.schema
}

// AddWidget creates a widget record.
//
// Zero Width or Height take DefaultWidth and DefaultHeight. The new record
// is always changed and never removed, whatever info says. The creation is
// one undoable transaction and discards any pending redo.
func (s *Store) AddWidget(info ir.WidgetInfo) error {
	if err := s.checkReentrant("add"); err != nil {
		return err
	}
	if info.Width == 0 {
		info.Width = ir.DefaultWidth
	}
	if info.Height == 0 {
		info.Height = ir.DefaultHeight
	}
	info.Changed = true
	info.Removed = false

	rec := info.Object()
	for _, f := range []string{ir.FieldWidgetID, ir.FieldNotebookID, ir.FieldCellID} {
		if rec.String(f) == "" {
			delete(rec, f)
		}
	}
	if err := s.schema.ValidateRecord(rec); err != nil {
		if schema.IsMissingField(err) {
			return fmt.Errorf("add widget %q: %w: %w", info.WidgetID, ErrMissingIdentity, err)
		}
		return fmt.Errorf("add widget %q: %w", info.WidgetID, err)
	}
	// A custom schema may leave identity fields optional.
	if len(rec) < len(ir.WidgetFields) {
		return fmt.Errorf("add widget %q: %w", info.WidgetID, ErrMissingIdentity)
	}
	if _, exists := s.table.Get(info.WidgetID); exists {
		return fmt.Errorf("add widget %q: %w", info.WidgetID, ErrDuplicateWidget)
	}

	changes := make([]ir.Change, 0, len(ir.WidgetFields))
	for _, f := range ir.WidgetFields {
		changes = append(changes, ir.Change{RecordID: info.WidgetID, Field: f, Next: rec[f]})
	}
	if err := s.apply(ir.SourceUser, changes); err != nil {
		return fmt.Errorf("add widget %q: %w", info.WidgetID, err)
	}
	return nil
}

// MoveWidget sets the rectangle of an existing widget. Returns false, with
// no transaction, when the widget is absent or removed.
func (s *Store) MoveWidget(id string, pos ir.WidgetPosition) (bool, error) {
	if err := s.checkReentrant("move"); err != nil {
		return false, err
	}
	rec, ok := s.live(id)
	if !ok {
		s.logger.Debug("move rejected", "store_id", s.id, "widget_id", id)
		return false, nil
	}

	next := pos.Object()
	changes := make([]ir.Change, 0, len(ir.PositionFields)+1)
	for _, f := range ir.PositionFields {
		changes = append(changes, ir.Change{RecordID: id, Field: f, Previous: rec[f], Next: next[f]})
	}
	changes = append(changes, s.markChanged(id, rec))

	if err := s.apply(ir.SourceUser, changes); err != nil {
		return false, fmt.Errorf("move widget %q: %w", id, err)
	}
	return true, nil
}

// DeleteWidget tombstones a widget. Returns false, with no transaction,
// when the widget is absent or already removed.
func (s *Store) DeleteWidget(id string) (bool, error) {
	if err := s.checkReentrant("delete"); err != nil {
		return false, err
	}
	rec, ok := s.live(id)
	if !ok {
		s.logger.Debug("delete rejected", "store_id", s.id, "widget_id", id)
		return false, nil
	}

	changes := []ir.Change{
		{RecordID: id, Field: s.schema.Tombstone, Previous: rec[s.schema.Tombstone], Next: ir.IRBool(true)},
		s.markChanged(id, rec),
	}
	if err := s.apply(ir.SourceUser, changes); err != nil {
		return false, fmt.Errorf("delete widget %q: %w", id, err)
	}
	return true, nil
}

// Undo reverts the most recent applied transaction. Returns false when
// there is nothing to undo.
func (s *Store) Undo() (bool, error) {
	if err := s.checkReentrant("undo"); err != nil {
		return false, err
	}
	tx, ok := s.log.Undo()
	if !ok {
		return false, nil
	}
	s.replay(tx)
	return true, nil
}

// Redo re-applies the most recently undone transaction. Returns false when
// there is nothing to redo.
func (s *Store) Redo() (bool, error) {
	if err := s.checkReentrant("redo"); err != nil {
		return false, err
	}
	tx, ok := s.log.Redo()
	if !ok {
		return false, nil
	}
	s.replay(tx)
	return true, nil
}

// CanUndo reports whether Undo would change anything.
func (s *Store) CanUndo() bool {
	return s.log.CanUndo()
}

// CanRedo reports whether Redo would change anything.
func (s *Store) CanRedo() bool {
	return s.log.CanRedo()
}

// HistoryLen returns the number of transactions in the undo/redo history.
func (s *Store) HistoryLen() int {
	return s.log.Len()
}

// Evicted returns how many transactions the history cap has dropped.
func (s *Store) Evicted() int {
	return s.log.Evicted()
}

// LastSeq returns the sequence number of the last applied transaction.
func (s *Store) LastSeq() int64 {
	return s.log.LastSeq()
}

// ListenTable subscribes fn to every change set committed to the table
// described by ts.
func (s *Store) ListenTable(ts *schema.TableSchema, fn notify.Listener) (*notify.Subscription, error) {
	if ts == nil || ts.Name != s.schema.Name {
		name := "<nil>"
		if ts != nil {
			name = ts.Name
		}
		return nil, fmt.Errorf("listen %q: %w", name, ErrUnknownTable)
	}
	return s.notifier.Listen(ts.Name, fn), nil
}

// Get returns the widget with the given id, including removed widgets.
func (s *Store) Get(id string) (ir.WidgetInfo, bool) {
	rec, ok := s.table.Get(id)
	if !ok {
		return ir.WidgetInfo{}, false
	}
	return mustWidget(rec), true
}

// Widgets yields the live widgets in creation order.
func (s *Store) Widgets() iter.Seq[ir.WidgetInfo] {
	return func(yield func(ir.WidgetInfo) bool) {
		for rec := range s.table.Iterate() {
			if !yield(mustWidget(rec)) {
				return
			}
		}
	}
}

// Records yields the raw live records in creation order.
func (s *Store) Records() iter.Seq[ir.IRObject] {
	return s.table.Iterate()
}

// PlaceCell creates a widget for a notebook cell dropped onto the canvas at
// (left, top) with the default size. Notebook and cell ids come from the
// configured resolver; the widget id is freshly minted.
func (s *Store) PlaceCell(notebook, cell identity.Tagged, left, top int64) (string, error) {
	if err := s.checkReentrant("place"); err != nil {
		return "", err
	}
	notebookID := s.resolver.NotebookID(notebook)
	cellID := s.resolver.CellID(cell)
	if notebookID == "" || cellID == "" {
		return "", fmt.Errorf("place cell: %w", ErrMissingIdentity)
	}

	id := s.ids.Generate()
	err := s.AddWidget(ir.WidgetInfo{
		WidgetID:   id,
		NotebookID: notebookID,
		CellID:     cellID,
		WidgetPosition: ir.WidgetPosition{
			Left:   left,
			Top:    top,
			Width:  ir.DefaultWidth,
			Height: ir.DefaultHeight,
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkPersisted clears the changed flag on every record after a save. The
// reset is notified to listeners but is not undoable. Returns the number of
// records cleared.
func (s *Store) MarkPersisted() (int, error) {
	if err := s.checkReentrant("mark persisted"); err != nil {
		return 0, err
	}
	var changes []ir.Change
	for rec := range s.table.All() {
		if rec.Bool(ir.FieldChanged) {
			changes = append(changes, ir.Change{
				RecordID: rec.String(s.schema.PrimaryKey),
				Field:    ir.FieldChanged,
				Previous: rec[ir.FieldChanged],
				Next:     ir.IRBool(false),
			})
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}
	if err := s.apply(ir.SourcePersist, changes); err != nil {
		return 0, fmt.Errorf("mark persisted: %w", err)
	}
	return len(changes), nil
}

// Compact erases removed widgets for good and clears the history, which
// may reference them. Returns the number of widgets erased.
func (s *Store) Compact() (int, error) {
	if err := s.checkReentrant("compact"); err != nil {
		return 0, err
	}
	purged := s.table.PurgeRemoved()
	s.log.Reset()
	s.logger.Debug("store compacted",
		"store_id", s.id,
		"purged", purged,
		"table_version", s.table.Version(),
	)
	return len(purged), nil
}

// apply runs one transaction through validation, the table, the log and
// the listeners.
func (s *Store) apply(source ir.Source, changes []ir.Change) error {
	if err := s.table.ApplyChanges(changes); err != nil {
		s.logger.Warn("transaction rejected",
			"store_id", s.id,
			"source", source,
			"error", err,
		)
		return err
	}

	tx := ir.Transaction{
		Seq:     s.log.NextSeq(),
		Source:  source,
		Table:   s.schema.Name,
		Changes: changes,
	}
	if source == ir.SourceUser {
		s.log.Commit(tx)
	}

	s.logger.Debug("transaction committed",
		"store_id", s.id,
		"seq", tx.Seq,
		"source", source,
		"changes", len(changes),
		"records", tx.RecordIDs(),
		"table_version", s.table.Version(),
	)
	s.notifier.Dispatch(tx.ChangeSet())
	return nil
}

// replay applies a transaction taken from the log. Logged transactions
// were valid when first applied, so a failure here means table and log
// have diverged.
func (s *Store) replay(tx ir.Transaction) {
	if err := s.apply(tx.Source, tx.Changes); err != nil {
		panic(fmt.Sprintf("placement: %s of seq %d failed: %v", tx.Source, tx.Seq, err))
	}
}

func (s *Store) checkReentrant(op string) error {
	if s.notifier.Dispatching() {
		s.logger.Debug("reentrant mutation rejected", "store_id", s.id, "op", op)
		return fmt.Errorf("%s: %w", op, ErrReentrantMutation)
	}
	return nil
}

// live returns the record for id if it exists and is not removed.
func (s *Store) live(id string) (ir.IRObject, bool) {
	rec, ok := s.table.Get(id)
	if !ok || s.schema.IsRemoved(rec) {
		return nil, false
	}
	return rec, true
}

func (s *Store) markChanged(id string, rec ir.IRObject) ir.Change {
	return ir.Change{RecordID: id, Field: ir.FieldChanged, Previous: rec[ir.FieldChanged], Next: ir.IRBool(true)}
}

func mustWidget(rec ir.IRObject) ir.WidgetInfo {
	w, err := ir.WidgetFromObject(rec)
	if err != nil {
		panic(fmt.Sprintf("placement: stored record does not match widget layout: %v", err))
	}
	return w
}
