// Package placement is the widget-placement record store.
//
// A Store owns one schema-validated record table, the undo/redo history for
// it, and the listeners subscribed to its changes. Every public mutator
// builds exactly one transaction, applies it atomically, logs it and then
// notifies listeners with the whole change set:
//
//	AddWidget / MoveWidget / DeleteWidget
//	    -> schema validation
//	    -> table apply (all-or-nothing)
//	    -> transaction log commit (user transactions only)
//	    -> listener dispatch
//
// Undo and Redo replay logged transactions through the same path but are
// never logged themselves. Deleting a widget only sets its removed flag, so
// a delete can always be undone while it is still in history.
//
// A Store is meant for single-goroutine use. Mutating it from inside one of
// its own listeners fails with ErrReentrantMutation.
package placement
