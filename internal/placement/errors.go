package placement

import "errors"

var (
	// ErrDuplicateWidget is returned when adding a widget whose id is
	// already present, live or removed.
	ErrDuplicateWidget = errors.New("widget already exists")

	// ErrUnknownTable is returned by ListenTable for a schema the store
	// does not own.
	ErrUnknownTable = errors.New("table is not owned by this store")

	// ErrReentrantMutation is returned when a listener tries to mutate the
	// store that is notifying it.
	ErrReentrantMutation = errors.New("store mutated from inside a change listener")

	// ErrMissingIdentity is returned when a widget, notebook or cell id is
	// empty or could not be resolved.
	ErrMissingIdentity = errors.New("missing widget identity")
)
