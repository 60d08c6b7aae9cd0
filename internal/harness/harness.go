package harness

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/roach88/dashstore/internal/identity"
	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/placement"
	"github.com/roach88/dashstore/internal/schema"
	"github.com/roach88/dashstore/internal/testutil"
)

// Harness executes one scenario against one store.
type Harness struct {
	store    *placement.Store
	recorder *testutil.Recorder
	logger   *slog.Logger

	// step and op label change sets as they arrive.
	step int
	op   string
}

// Option configures a harness run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes store and harness logs to logger. Runs are silent by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store with a deterministic clock, a
// "widget-N" id generator for placed cells and a "tag-N" generator for
// notebook and cell tags, so results are reproducible.
//
// The returned error covers problems running the scenario at all (bad
// schema file); step and assertion failures are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	storeOpts := []placement.Option{
		placement.WithLogger(cfg.logger),
		placement.WithSequencer(testutil.NewDeterministicClock()),
		placement.WithIDGenerator(testutil.NewSequentialIDGenerator("widget")),
		placement.WithMaxHistory(scenario.MaxHistory),
	}
	if scenario.Schema != "" {
		ts, err := loadWidgetSchema(scenario.Schema)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, placement.WithSchema(ts))
	}

	st := placement.New(placement.Config{
		ID:       scenario.StoreID,
		Resolver: identity.NewMetadataResolver(testutil.NewSequentialIDGenerator("tag")),
	}, storeOpts...)

	h := &Harness{
		store:    st,
		recorder: testutil.NewRecorder(),
		logger:   cfg.logger,
	}
	result := NewResult()

	sub, err := st.ListenTable(st.Schema(), func(cs ir.ChangeSet) {
		h.recorder.Listen(cs)
		result.Trace = append(result.Trace, TraceEvent{
			Step:    h.step,
			Op:      h.op,
			Seq:     cs.Seq,
			Source:  cs.Source,
			Table:   cs.Table,
			Changes: cs.Changes,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	for i, step := range scenario.Steps {
		h.step, h.op = i, step.Op
		for _, msg := range h.execute(step) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
		}
	}

	result.Widgets = slices.Collect(st.Widgets())
	if result.Widgets == nil {
		result.Widgets = []ir.WidgetInfo{}
	}

	for _, err := range EvaluateAssertions(h, result, scenario.Assertions) {
		result.AddError(err.Error())
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// execute runs one step and returns the expectation failures.
func (h *Harness) execute(step Step) []string {
	var (
		ok    bool
		count int
		id    string
		err   error
	)

	switch step.Op {
	case OpAdd:
		err = h.store.AddWidget(step.Widget.info())
	case OpMove:
		ok, err = h.store.MoveWidget(step.ID, step.Position.position())
	case OpDelete:
		ok, err = h.store.DeleteWidget(step.ID)
	case OpUndo:
		ok, err = h.store.Undo()
	case OpRedo:
		ok, err = h.store.Redo()
	case OpPlace:
		id, err = h.store.PlaceCell(metadata(step.Notebook), metadata(step.Cell), step.Left, step.Top)
	case OpMarkPersisted:
		count, err = h.store.MarkPersisted()
	case OpCompact:
		count, err = h.store.Compact()
	default:
		return []string{fmt.Sprintf("unknown op %q", step.Op)}
	}

	h.logger.Debug("step executed", "step", h.step, "op", step.Op, "ok", ok, "error", err)

	exp := step.Expect
	if exp == nil {
		exp = &StepExpect{}
	}

	var failures []string
	switch {
	case exp.Error == "" && err != nil:
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	case exp.Error != "" && err == nil:
		return []string{fmt.Sprintf("expected %s error, got success", exp.Error)}
	case exp.Error != "":
		if !errorKinds[exp.Error](err) {
			failures = append(failures, fmt.Sprintf("expected %s error, got %s: %v", exp.Error, errorKind(err), err))
		}
		return failures
	}

	if exp.OK != nil && *exp.OK != ok {
		failures = append(failures, fmt.Sprintf("expected ok=%t, got %t", *exp.OK, ok))
	}
	if exp.Count != nil && *exp.Count != count {
		failures = append(failures, fmt.Sprintf("expected count %d, got %d", *exp.Count, count))
	}
	if exp.ID != "" && exp.ID != id {
		failures = append(failures, fmt.Sprintf("expected id %q, got %q", exp.ID, id))
	}
	return failures
}

func (w *WidgetSpec) info() ir.WidgetInfo {
	return ir.WidgetInfo{
		WidgetID:   w.WidgetID,
		NotebookID: w.NotebookID,
		CellID:     w.CellID,
		WidgetPosition: ir.WidgetPosition{
			Left:   w.Left,
			Top:    w.Top,
			Width:  w.Width,
			Height: w.Height,
		},
	}
}

func (p *PositionSpec) position() ir.WidgetPosition {
	return ir.WidgetPosition{Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height}
}

// metadata copies m so placing a cell never writes back into the scenario.
func metadata(m map[string]string) identity.Metadata {
	md := identity.Metadata{}
	maps.Copy(md, m)
	return md
}

// loadWidgetSchema compiles a CUE file and returns its widget table.
func loadWidgetSchema(path string) (*schema.TableSchema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	tables, err := schema.Compile(src, path)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	t, ok := schema.NewRegistry(tables...).Lookup(ir.WidgetTable)
	if !ok {
		return nil, fmt.Errorf("schema %s: no %q table", path, ir.WidgetTable)
	}
	if missing := MissingWidgetFields(t); len(missing) > 0 {
		return nil, fmt.Errorf("schema %s: widget table lacks fields %v", path, missing)
	}
	return t, nil
}

// MissingWidgetFields lists the widget record fields t does not declare.
func MissingWidgetFields(t *schema.TableSchema) []string {
	var missing []string
	for _, f := range ir.WidgetFields {
		if _, ok := t.Field(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
