// Package notify fans committed change sets out to per-table listeners.
//
// Dispatch is synchronous and runs on the committing goroutine, one call per
// transaction, in commit order. Listeners are snapshotted when a dispatch
// starts, so subscribing or closing from inside a callback only affects
// later dispatches.
package notify

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/dashstore/internal/ir"
)

// Listener receives every change set committed to the table it listens on.
type Listener func(ir.ChangeSet)

// Subscription is the handle returned by Listen.
type Subscription struct {
	n      *Notifier
	table  string
	id     uint64
	closed atomic.Bool
}

// Close unsubscribes the listener. Calling Close more than once is a no-op,
// and it is safe to call from inside the listener itself.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.n.remove(s.table, s.id)
}

// Closed reports whether Close has been called.
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

type entry struct {
	id uint64
	fn Listener
}

// Notifier holds the subscriptions of one store.
type Notifier struct {
	mu          sync.Mutex
	nextID      uint64
	listeners   map[string][]entry
	dispatching atomic.Int32
}

// New creates a notifier with no subscriptions.
func New() *Notifier {
	return &Notifier{listeners: make(map[string][]entry)}
}

// Listen registers fn for change sets on table.
func (n *Notifier) Listen(table string, fn Listener) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.listeners[table] = append(n.listeners[table], entry{id: n.nextID, fn: fn})
	return &Subscription{n: n, table: table, id: n.nextID}
}

// Count returns the number of active listeners on table.
func (n *Notifier) Count(table string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners[table])
}

// Dispatch delivers cs to every listener of cs.Table, in subscription order.
// Empty change sets are not delivered.
func (n *Notifier) Dispatch(cs ir.ChangeSet) {
	if len(cs.Changes) == 0 {
		return
	}

	n.mu.Lock()
	snapshot := slices.Clone(n.listeners[cs.Table])
	n.mu.Unlock()

	n.dispatching.Add(1)
	defer n.dispatching.Add(-1)

	for _, e := range snapshot {
		// Each listener gets its own slice so one cannot corrupt another's view.
		e.fn(ir.ChangeSet{
			Table:   cs.Table,
			Seq:     cs.Seq,
			Source:  cs.Source,
			Changes: slices.Clone(cs.Changes),
		})
	}
}

// Dispatching reports whether a dispatch is in progress.
func (n *Notifier) Dispatching() bool {
	return n.dispatching.Load() > 0
}

func (n *Notifier) remove(table string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.listeners[table] = slices.DeleteFunc(n.listeners[table], func(e entry) bool {
		return e.id == id
	})
	if len(n.listeners[table]) == 0 {
		delete(n.listeners, table)
	}
}
