package placement

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dashstore/internal/identity"
	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/schema"
	"github.com/roach88/dashstore/internal/testutil"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *testutil.Recorder) {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithSequencer(testutil.NewDeterministicClock()),
	}, opts...)
	s := New(Config{ID: 7}, opts...)

	rec := testutil.NewRecorder()
	_, err := s.ListenTable(schema.Widget(), rec.Listen)
	require.NoError(t, err)
	return s, rec
}

func w(id string) ir.WidgetInfo {
	return ir.WidgetInfo{WidgetID: id, NotebookID: "n1", CellID: "c1"}
}

// tableState captures every record, tombstones included, in creation order.
func tableState(s *Store) []ir.IRObject {
	return slices.Collect(s.table.All())
}

func liveIDs(s *Store) []string {
	var ids []string
	for info := range s.Widgets() {
		ids = append(ids, info.WidgetID)
	}
	return ids
}

func TestAddWidget_FillsDefaults(t *testing.T) {
	s, rec := newTestStore(t)

	require.NoError(t, s.AddWidget(w("w1")))

	got, ok := s.Get("w1")
	require.True(t, ok)
	assert.Equal(t, ir.WidgetInfo{
		WidgetID:   "w1",
		NotebookID: "n1",
		CellID:     "c1",
		WidgetPosition: ir.WidgetPosition{
			Width:  ir.DefaultWidth,
			Height: ir.DefaultHeight,
		},
		Changed: true,
	}, got)
	assert.Equal(t, 1, s.HistoryLen())
	assert.Equal(t, 1, rec.Count())
}

func TestAddWidget_KeepsCallerValues(t *testing.T) {
	tests := []struct {
		name string
		info ir.WidgetInfo
		want ir.WidgetPosition
	}{
		{
			name: "explicit rectangle",
			info: ir.WidgetInfo{WidgetID: "w1", NotebookID: "n1", CellID: "c1",
				WidgetPosition: ir.WidgetPosition{Left: 5, Top: 6, Width: 7, Height: 8}},
			want: ir.WidgetPosition{Left: 5, Top: 6, Width: 7, Height: 8},
		},
		{
			name: "negative offsets",
			info: ir.WidgetInfo{WidgetID: "w1", NotebookID: "n1", CellID: "c1",
				WidgetPosition: ir.WidgetPosition{Left: -40, Top: -1}},
			want: ir.WidgetPosition{Left: -40, Top: -1, Width: ir.DefaultWidth, Height: ir.DefaultHeight},
		},
		{
			name: "only width",
			info: ir.WidgetInfo{WidgetID: "w1", NotebookID: "n1", CellID: "c1",
				WidgetPosition: ir.WidgetPosition{Width: 42}},
			want: ir.WidgetPosition{Width: 42, Height: ir.DefaultHeight},
		},
		{
			name: "flags are overridden",
			info: ir.WidgetInfo{WidgetID: "w1", NotebookID: "n1", CellID: "c1", Changed: false, Removed: true},
			want: ir.WidgetPosition{Width: ir.DefaultWidth, Height: ir.DefaultHeight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			require.NoError(t, s.AddWidget(tt.info))

			got, ok := s.Get("w1")
			require.True(t, ok)
			assert.Equal(t, tt.want, got.WidgetPosition)
			assert.True(t, got.Changed)
			assert.False(t, got.Removed)
		})
	}
}

func TestAddWidget_Errors(t *testing.T) {
	tests := []struct {
		name  string
		info  ir.WidgetInfo
		check func(t *testing.T, err error)
	}{
		{
			name: "missing widget id",
			info: ir.WidgetInfo{NotebookID: "n1", CellID: "c1"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingIdentity)
			},
		},
		{
			name: "missing cell id",
			info: ir.WidgetInfo{WidgetID: "w1", NotebookID: "n1"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingIdentity)
				assert.True(t, schema.IsMissingField(err), "got %v", err)
				var se *schema.SchemaError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, ir.FieldCellID, se.Field)
			},
		},
		{
			name: "negative width",
			info: ir.WidgetInfo{WidgetID: "w1", NotebookID: "n1", CellID: "c1",
				WidgetPosition: ir.WidgetPosition{Width: -3}},
			check: func(t *testing.T, err error) {
				assert.True(t, schema.IsConstraint(err), "got %v", err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestStore(t)
			err := s.AddWidget(tt.info)
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, 0, s.HistoryLen(), "no log entry")
			assert.Equal(t, 0, rec.Count(), "no notification")
			assert.Equal(t, 0, s.table.Len(), "no partial mutation")
		})
	}
}

func TestAddWidget_Duplicate(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))

	err := s.AddWidget(w("w1"))
	assert.ErrorIs(t, err, ErrDuplicateWidget)

	// still a duplicate once removed
	_, err = s.DeleteWidget("w1")
	require.NoError(t, err)
	err = s.AddWidget(w("w1"))
	assert.ErrorIs(t, err, ErrDuplicateWidget)

	assert.Equal(t, 2, s.HistoryLen())
	assert.Equal(t, 2, rec.Count())
}

func TestAddWidget_ChangeSetIsCreation(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))

	cs, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, ir.WidgetTable, cs.Table)
	assert.Equal(t, ir.SourceUser, cs.Source)
	assert.Equal(t, int64(1), cs.Seq)
	require.Len(t, cs.Changes, len(ir.WidgetFields))
	for i, c := range cs.Changes {
		assert.Equal(t, "w1", c.RecordID)
		assert.Equal(t, ir.WidgetFields[i], c.Field)
		assert.Nil(t, c.Previous)
		assert.NotNil(t, c.Next)
	}
}

func TestMoveWidget_TouchesOnlyPosition(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	_, err := s.MarkPersisted()
	require.NoError(t, err)
	rec.Reset()

	pos := ir.WidgetPosition{Left: 10, Top: 20, Width: 100, Height: 50}
	ok, err := s.MoveWidget("w1", pos)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := s.Get("w1")
	assert.Equal(t, pos, got.WidgetPosition)
	assert.Equal(t, "w1", got.WidgetID)
	assert.Equal(t, "n1", got.NotebookID)
	assert.Equal(t, "c1", got.CellID)
	assert.True(t, got.Changed)
	assert.False(t, got.Removed)

	cs, _ := rec.Last()
	var fields []string
	for _, c := range cs.Changes {
		fields = append(fields, c.Field)
	}
	assert.ElementsMatch(t, []string{ir.FieldLeft, ir.FieldTop, ir.FieldWidth, ir.FieldHeight, ir.FieldChanged}, fields)
}

func TestMoveWidget_InvalidRectangle(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	before := tableState(s)

	ok, err := s.MoveWidget("w1", ir.WidgetPosition{Left: 1, Top: 1, Width: 0, Height: 10})
	require.Error(t, err)
	assert.True(t, schema.IsConstraint(err))
	assert.False(t, ok)

	assert.Equal(t, before, tableState(s))
	assert.Equal(t, 1, s.HistoryLen())
	assert.Equal(t, 1, rec.Count())
}

func TestMoveAndDelete_AbsentOrRemoved(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("gone")))
	ok, err := s.DeleteWidget("gone")
	require.NoError(t, err)
	require.True(t, ok)

	historyBefore := s.HistoryLen()
	countBefore := rec.Count()
	pos := ir.WidgetPosition{Left: 1, Top: 1, Width: 1, Height: 1}

	for _, id := range []string{"missing", "gone"} {
		ok, err := s.MoveWidget(id, pos)
		require.NoError(t, err)
		assert.False(t, ok, "move %s", id)

		ok, err = s.DeleteWidget(id)
		require.NoError(t, err)
		assert.False(t, ok, "delete %s", id)
	}

	assert.Equal(t, historyBefore, s.HistoryLen())
	assert.Equal(t, countBefore, rec.Count())
}

func TestDeleteWidget_Tombstones(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	require.NoError(t, s.AddWidget(w("w2")))

	ok, err := s.DeleteWidget("w1")
	require.NoError(t, err)
	require.True(t, ok)

	got, found := s.Get("w1")
	require.True(t, found, "row is kept")
	assert.True(t, got.Removed)
	assert.True(t, got.Changed)
	assert.Equal(t, []string{"w2"}, liveIDs(s))
}

func TestExampleScenario(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddWidget(w("w1")))
	got, ok := s.Get("w1")
	require.True(t, ok)
	assert.Equal(t, ir.DefaultWidth, got.Width)
	assert.Equal(t, ir.DefaultHeight, got.Height)
	assert.False(t, got.Removed)

	moved := ir.WidgetPosition{Left: 10, Top: 20, Width: 100, Height: 50}
	ok, err := s.MoveWidget("w1", moved)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ = s.Get("w1")
	assert.Equal(t, moved, got.WidgetPosition)

	ok, err = s.DeleteWidget("w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, liveIDs(s))

	ok, err = s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"w1"}, liveIDs(s))
	got, _ = s.Get("w1")
	assert.Equal(t, moved, got.WidgetPosition)

	ok, err = s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	got, _ = s.Get("w1")
	assert.Equal(t, ir.WidgetPosition{Width: ir.DefaultWidth, Height: ir.DefaultHeight}, got.WidgetPosition)

	ok, err = s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, liveIDs(s))
	_, found := s.Get("w1")
	assert.False(t, found, "creation undone")

	ok, err = s.Undo()
	require.NoError(t, err)
	assert.False(t, ok, "history exhausted")
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	ops := []func() error{
		func() error { return s.AddWidget(w("a")) },
		func() error { return s.AddWidget(w("b")) },
		func() error {
			_, err := s.MoveWidget("a", ir.WidgetPosition{Left: 3, Top: 4, Width: 5, Height: 6})
			return err
		},
		func() error { _, err := s.DeleteWidget("b"); return err },
		func() error {
			_, err := s.MoveWidget("a", ir.WidgetPosition{Left: -3, Top: 9, Width: 1, Height: 1})
			return err
		},
		func() error { return s.AddWidget(w("c")) },
	}
	for _, op := range ops {
		require.NoError(t, op())
	}
	after := tableState(s)

	for range ops {
		ok, err := s.Undo()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Empty(t, tableState(s))

	for range ops {
		ok, err := s.Redo()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, after, tableState(s))

	ok, err := s.Redo()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedo_BranchDiscarded(t *testing.T) {
	tests := []struct {
		name string
		next func(s *Store) error
	}{
		{
			name: "add",
			next: func(s *Store) error { return s.AddWidget(w("w2")) },
		},
		{
			name: "move",
			next: func(s *Store) error {
				_, err := s.MoveWidget("w1", ir.WidgetPosition{Left: 1, Top: 1, Width: 1, Height: 1})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			require.NoError(t, s.AddWidget(w("w1")))
			_, err := s.MoveWidget("w1", ir.WidgetPosition{Left: 9, Top: 9, Width: 9, Height: 9})
			require.NoError(t, err)

			ok, err := s.Undo()
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, s.CanRedo())

			require.NoError(t, tt.next(s))
			assert.False(t, s.CanRedo())

			before := tableState(s)
			ok, err = s.Redo()
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, before, tableState(s))
		})
	}
}

func TestUndoRedo_NotLogged(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	require.NoError(t, s.AddWidget(w("w2")))

	_, _ = s.Undo()
	_, _ = s.Undo()
	_, _ = s.Redo()
	assert.Equal(t, 2, s.HistoryLen())
	assert.True(t, s.CanUndo())
	assert.True(t, s.CanRedo())
}

func TestListenerCompleteness(t *testing.T) {
	s, rec := newTestStore(t)

	require.NoError(t, s.AddWidget(w("w1")))
	_, _ = s.MoveWidget("w1", ir.WidgetPosition{Left: 1, Top: 2, Width: 3, Height: 4})
	_, _ = s.DeleteWidget("w1")
	_, _ = s.Undo()
	_, _ = s.Redo()

	// no-ops
	_, _ = s.MoveWidget("missing", ir.WidgetPosition{Width: 1, Height: 1})
	_, _ = s.DeleteWidget("w1")
	_, _ = s.Redo()

	assert.Equal(t, []ir.Source{
		ir.SourceUser, ir.SourceUser, ir.SourceUser, ir.SourceUndo, ir.SourceRedo,
	}, rec.Sources())

	empty, emptyRec := newTestStore(t)
	_, _ = empty.Undo()
	_, _ = empty.Redo()
	assert.Equal(t, 0, emptyRec.Count())
}

func TestListener_SeqIsMonotonic(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	_, _ = s.Undo()
	_, _ = s.Redo()

	var seqs []int64
	for _, cs := range rec.ChangeSets() {
		seqs = append(seqs, cs.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
	assert.Equal(t, int64(3), s.LastSeq())
}

func TestListenTable_UnknownTable(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.ListenTable(&schema.TableSchema{Name: "other"}, func(ir.ChangeSet) {})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.ListenTable(nil, func(ir.ChangeSet) {})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestListenTable_Unsubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	calls := 0
	sub, err := s.ListenTable(s.Schema(), func(ir.ChangeSet) { calls++ })
	require.NoError(t, err)

	require.NoError(t, s.AddWidget(w("w1")))
	sub.Close()
	sub.Close()
	require.NoError(t, s.AddWidget(w("w2")))

	assert.Equal(t, 1, calls)
}

func TestReentrantMutation(t *testing.T) {
	s, _ := newTestStore(t)
	var errs []error
	_, err := s.ListenTable(s.Schema(), func(cs ir.ChangeSet) {
		if cs.Source != ir.SourceUser {
			return
		}
		errs = append(errs, s.AddWidget(w("inner")))
		_, err := s.MoveWidget("w1", ir.WidgetPosition{Width: 1, Height: 1})
		errs = append(errs, err)
		_, err = s.Undo()
		errs = append(errs, err)
		_, err = s.MarkPersisted()
		errs = append(errs, err)
	})
	require.NoError(t, err)

	require.NoError(t, s.AddWidget(w("w1")))

	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrReentrantMutation)
	}
	_, found := s.Get("inner")
	assert.False(t, found)
	assert.Equal(t, 1, s.HistoryLen())

	// reads are fine from a listener, and mutation works again afterwards
	ok, err := s.MoveWidget("w1", ir.WidgetPosition{Width: 1, Height: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReadsFromListenerSeeWholeTransaction(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))

	var seen ir.WidgetInfo
	_, err := s.ListenTable(s.Schema(), func(ir.ChangeSet) {
		seen, _ = s.Get("w1")
	})
	require.NoError(t, err)

	pos := ir.WidgetPosition{Left: 11, Top: 12, Width: 13, Height: 14}
	_, err = s.MoveWidget("w1", pos)
	require.NoError(t, err)
	assert.Equal(t, pos, seen.WidgetPosition)
}

func TestWithMaxHistory(t *testing.T) {
	s, _ := newTestStore(t, WithMaxHistory(2))
	require.NoError(t, s.AddWidget(w("a")))
	require.NoError(t, s.AddWidget(w("b")))
	require.NoError(t, s.AddWidget(w("c")))

	assert.Equal(t, 2, s.HistoryLen())
	assert.Equal(t, 1, s.Evicted())
	_, _ = s.Undo()
	_, _ = s.Undo()
	ok, err := s.Undo()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, liveIDs(s), "evicted creation stays")
}

func TestPlaceCell(t *testing.T) {
	resolver := identity.NewMetadataResolver(identity.NewFixedGenerator("nb-1", "cell-1"))
	s := New(Config{ID: 1, Resolver: resolver},
		WithLogger(slog.New(slog.DiscardHandler)),
		WithIDGenerator(identity.NewFixedGenerator("widget-1")),
	)

	nb := identity.Metadata{}
	cell := identity.Metadata{}
	id, err := s.PlaceCell(nb, cell, 30, 40)
	require.NoError(t, err)
	assert.Equal(t, "widget-1", id)

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "nb-1", got.NotebookID)
	assert.Equal(t, "cell-1", got.CellID)
	assert.Equal(t, ir.WidgetPosition{Left: 30, Top: 40, Width: ir.DefaultWidth, Height: ir.DefaultHeight}, got.WidgetPosition)
	assert.Equal(t, "nb-1", nb[identity.NotebookIDKey])
}

type unresolvable struct{}

func (unresolvable) NotebookID(identity.Tagged) string { return "" }
func (unresolvable) CellID(identity.Tagged) string     { return "c" }

func TestPlaceCell_Unresolved(t *testing.T) {
	s := New(Config{Resolver: unresolvable{}}, WithLogger(slog.New(slog.DiscardHandler)))
	_, err := s.PlaceCell(identity.Metadata{}, identity.Metadata{}, 0, 0)
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestMarkPersisted(t *testing.T) {
	s, rec := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	require.NoError(t, s.AddWidget(w("w2")))
	_, _ = s.DeleteWidget("w2")
	historyBefore := s.HistoryLen()

	n, err := s.MarkPersisted()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"w1", "w2"} {
		got, _ := s.Get(id)
		assert.False(t, got.Changed, id)
	}
	last, _ := rec.Last()
	assert.Equal(t, ir.SourcePersist, last.Source)
	assert.Equal(t, historyBefore, s.HistoryLen(), "not undoable")

	n, err = s.MarkPersisted()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 4, rec.Count(), "nothing to clear, nothing notified")

	_, _ = s.MoveWidget("w1", ir.WidgetPosition{Width: 2, Height: 2})
	got, _ := s.Get("w1")
	assert.True(t, got.Changed)
}

func TestCompact(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddWidget(w("w1")))
	require.NoError(t, s.AddWidget(w("w2")))
	_, _ = s.DeleteWidget("w1")

	n, err := s.Compact()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found := s.Get("w1")
	assert.False(t, found)
	assert.Equal(t, 0, s.HistoryLen())
	assert.False(t, s.CanUndo())

	// a purged id is free again
	require.NoError(t, s.AddWidget(w("w1")))
	assert.Equal(t, []string{"w2", "w1"}, liveIDs(s))
}

func TestNew_RejectsIncompleteSchema(t *testing.T) {
	partial := &schema.TableSchema{Name: ir.WidgetTable, PrimaryKey: ir.FieldWidgetID}
	assert.Panics(t, func() { New(Config{}, WithSchema(partial)) })
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{ID: 3})
	assert.Equal(t, int64(3), s.ID())
	assert.Same(t, schema.Widget(), s.Schema())
	assert.Equal(t, int64(0), s.LastSeq())
}

func TestRecords_LiveCopies(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddWidget(w("a")))
	require.NoError(t, s.AddWidget(w("b")))
	_, err := s.DeleteWidget("a")
	require.NoError(t, err)

	recs := slices.Collect(s.Records())
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].String(ir.FieldWidgetID))

	recs[0][ir.FieldLeft] = ir.IRInt(999)
	got, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(0), got.Left, "records are copies")
}

func TestApply_LogsTouchedRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(Config{ID: 3}, WithLogger(logger))

	require.NoError(t, s.AddWidget(w("w1")))

	var entry struct {
		Msg          string   `json:"msg"`
		Records      []string `json:"records"`
		TableVersion int64    `json:"table_version"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "transaction committed", entry.Msg)
	assert.Equal(t, []string{"w1"}, entry.Records)
	assert.Equal(t, int64(1), entry.TableVersion)
}
