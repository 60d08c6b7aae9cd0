package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dashstore/internal/ir"
)

// TraceSnapshot captures a scenario's trace and final live widgets.
// It is serialized with canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Widgets      []ir.WidgetInfo
}

// toCanonicalMap converts the snapshot to plain maps, lists and IR values,
// which is what ir.MarshalCanonical accepts. Nil previous/next values are
// omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		changes := make([]any, len(event.Changes))
		for j, c := range event.Changes {
			cm := map[string]any{
				"record_id": c.RecordID,
				"field":     c.Field,
			}
			if c.Previous != nil {
				cm["previous"] = c.Previous
			}
			if c.Next != nil {
				cm["next"] = c.Next
			}
			changes[j] = cm
		}
		traceList[i] = map[string]any{
			"step":    event.Step,
			"op":      event.Op,
			"seq":     event.Seq,
			"source":  string(event.Source),
			"table":   event.Table,
			"changes": changes,
		}
	}

	widgets := make([]any, len(s.Widgets))
	for i, w := range s.Widgets {
		widgets[i] = w.Object()
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"widgets":       widgets,
	}
}

// MarshalCanonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario could not run. A trace mismatch fails t
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Widgets:      result.Widgets,
	}
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
