package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dashstore/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [seq %d] step %d %s (%s): %d changes\n",
				event.Seq, event.Step, event.Op, event.Source, len(event.Changes))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(h *Harness, result *Result, assertions []Assertion) []error {
	var errs []error
	for i, a := range assertions {
		if err := evaluate(h, result, a); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errs
}

func evaluate(h *Harness, result *Result, a Assertion) error {
	switch a.Type {
	case AssertLiveWidgets:
		return assertLiveWidgets(result, a)
	case AssertWidget:
		return assertWidget(h, a)
	case AssertAbsent:
		if _, ok := h.store.Get(a.ID); ok {
			return &AssertionError{
				Type:     AssertAbsent,
				Expected: fmt.Sprintf("no record for %q", a.ID),
				Actual:   "record present",
			}
		}
		return nil
	case AssertNotificationCount:
		if got := h.recorder.Count(); got != *a.Count {
			return &AssertionError{
				Type:     AssertNotificationCount,
				Expected: fmt.Sprintf("%d notifications", *a.Count),
				Actual:   fmt.Sprintf("%d notifications", got),
				Trace:    result.Trace,
			}
		}
		return nil
	case AssertHistory:
		if got := h.store.HistoryLen(); got != *a.Count {
			return &AssertionError{
				Type:     AssertHistory,
				Expected: fmt.Sprintf("%d logged transactions", *a.Count),
				Actual:   fmt.Sprintf("%d logged transactions", got),
				Trace:    result.Trace,
			}
		}
		if a.Evicted != nil {
			if got := h.store.Evicted(); got != *a.Evicted {
				return &AssertionError{
					Type:     AssertHistory,
					Expected: fmt.Sprintf("%d evicted transactions", *a.Evicted),
					Actual:   fmt.Sprintf("%d evicted transactions", got),
					Trace:    result.Trace,
				}
			}
		}
		return nil
	case AssertSources:
		return assertSources(h, result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertLiveWidgets checks the exact ordered list of live widget ids.
func assertLiveWidgets(result *Result, a Assertion) error {
	ids := make([]string, 0, len(result.Widgets))
	for _, w := range result.Widgets {
		ids = append(ids, w.WidgetID)
	}
	if !slices.Equal(ids, a.IDs) {
		return &AssertionError{
			Type:     AssertLiveWidgets,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   fmt.Sprintf("%v", ids),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertWidget checks record fields with subset semantics: only the fields
// named in Expect are compared. Removed widgets are still visible here.
func assertWidget(h *Harness, a Assertion) error {
	info, ok := h.store.Get(a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertWidget,
			Expected: fmt.Sprintf("record for %q", a.ID),
			Actual:   "record not found",
		}
	}
	rec := info.Object()

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		want, err := ir.FromGo(a.Expect[key])
		if err != nil {
			return fmt.Errorf("expect field %q: %w", key, err)
		}
		got, exists := rec[key]
		if !exists {
			return &AssertionError{
				Type:     AssertWidget,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields present: %v", rec.SortedKeys()),
			}
		}
		if !ir.Equal(want, got) {
			return &AssertionError{
				Type:     AssertWidget,
				Expected: fmt.Sprintf("%s.%s = %v", a.ID, key, want),
				Actual:   fmt.Sprintf("%s.%s = %v", a.ID, key, got),
			}
		}
	}
	return nil
}

func assertSources(h *Harness, result *Result, a Assertion) error {
	got := h.recorder.Sources()
	actual := make([]string, len(got))
	for i, s := range got {
		actual[i] = string(s)
	}
	if !slices.Equal(actual, a.Sources) {
		return &AssertionError{
			Type:     AssertSources,
			Expected: fmt.Sprintf("%v", a.Sources),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}
