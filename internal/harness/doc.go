// Package harness runs scripted placement-store scenarios.
//
// A scenario is a YAML file listing store operations (add, move, delete,
// undo, redo, place, mark_persisted, compact) with optional per-step
// expectations, followed by assertions on the final state:
//
//	name: widget_lifecycle
//	description: Add, move and delete a widget, then undo everything
//	steps:
//	  - op: add
//	    widget: {widget_id: w1, notebook_id: n1, cell_id: c1}
//	  - op: move
//	    id: w1
//	    position: {left: 10, top: 20, width: 100, height: 50}
//	    expect: {ok: true}
//	  - op: undo
//	assertions:
//	  - type: live_widgets
//	    ids: [w1]
//
// Every scenario runs against a fresh store with a deterministic clock and
// deterministic id generators, so the trace (the change sets the store
// notified, in order) is byte-for-byte reproducible and can be compared
// against golden files with RunWithGolden.
package harness
