package harness

import (
	"errors"

	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/placement"
	"github.com/roach88/dashstore/internal/schema"
)

// TraceEvent is one change set notified by the store.
type TraceEvent struct {
	// Step is the index of the step that produced the change set.
	Step    int         `json:"step"`
	Op      string      `json:"op"`
	Seq     int64       `json:"seq"`
	Source  ir.Source   `json:"source"`
	Table   string      `json:"table"`
	Changes []ir.Change `json:"changes"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every notified change set in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Widgets are the live widgets at the end of the run, in creation order.
	Widgets []ir.WidgetInfo `json:"widgets"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Widgets: []ir.WidgetInfo{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// errorKinds maps the error names usable in step expectations to a
// matcher.
var errorKinds = map[string]func(error) bool{
	"duplicate_widget": func(err error) bool { return errors.Is(err, placement.ErrDuplicateWidget) },
	"missing_identity": func(err error) bool { return errors.Is(err, placement.ErrMissingIdentity) },
	"reentrant":        func(err error) bool { return errors.Is(err, placement.ErrReentrantMutation) },
	"missing_field":    schema.IsMissingField,
	"unknown_field":    schema.IsUnknownField,
	"type_mismatch":    schema.IsTypeMismatch,
	"constraint":       schema.IsConstraint,
	"schema":           schema.IsSchemaError,
}

// errorKind names err using the errorKinds vocabulary, or returns
// "unexpected" when none matches. "schema" is only reported when no more
// specific schema kind matches.
func errorKind(err error) string {
	for _, kind := range []string{"duplicate_widget", "missing_identity", "reentrant", "missing_field", "unknown_field", "type_mismatch", "constraint", "schema"} {
		if errorKinds[kind](err) {
			return kind
		}
	}
	return "unexpected"
}
