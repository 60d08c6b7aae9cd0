// Package txlog records committed transactions and walks them backwards
// and forwards for undo and redo.
//
// The log is a single linear sequence with a cursor. Entries before the
// cursor can be undone; entries at or after it can be redone. Committing
// a new transaction discards everything after the cursor, the usual
// undo-stack behaviour.
//
// Only user transactions are logged. Undo and redo replays are applied by
// the caller but never committed, so history does not grow while walking it.
package txlog

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/dashstore/internal/ir"
)

// Option configures a Log.
type Option func(*Log)

// WithMaxEntries caps the number of retained transactions. Once the cap is
// reached the oldest transaction is evicted on every commit and can no
// longer be undone. Zero or negative means unbounded (the default).
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		l.maxEntries = n
	}
}

// WithSequencer replaces the default Clock.
func WithSequencer(s Sequencer) Option {
	return func(l *Log) {
		l.clock = s
	}
}

// Log is the undo/redo history of one store.
//
// Thread-safety: cursor manipulation is a critical section guarded by a
// mutex, so Commit, Undo and Redo never interleave.
type Log struct {
	mu         sync.Mutex
	entries    []ir.Transaction
	cursor     int
	maxEntries int
	evicted    int
	clock      Sequencer
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{clock: NewClock()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NextSeq stamps a new sequence number from the log's clock.
func (l *Log) NextSeq() int64 {
	return l.clock.Next()
}

// LastSeq returns the last sequence number handed out.
func (l *Log) LastSeq() int64 {
	return l.clock.Current()
}

// Commit appends tx at the cursor, discarding any redo branch, and moves
// the cursor past it.
//
// Panics if tx is an undo/redo replay: replays must never be logged.
func (l *Log) Commit(tx ir.Transaction) {
	if tx.Source.IsReplay() {
		panic(fmt.Sprintf("txlog: refusing to log %s replay of seq %d", tx.Source, tx.Seq))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkInvariants()

	// Zero the discarded tail so its change slices can be collected.
	clear(l.entries[l.cursor:])
	l.entries = append(l.entries[:l.cursor], tx)
	l.cursor++

	if l.maxEntries > 0 && len(l.entries) > l.maxEntries {
		n := len(l.entries) - l.maxEntries
		l.entries = slices.Delete(l.entries, 0, n)
		l.cursor -= n
		l.evicted += n
	}
}

// Undo moves the cursor back one step and returns the inverse of the
// transaction it crossed, tagged SourceUndo. Returns false when there is
// nothing to undo.
func (l *Log) Undo() (ir.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkInvariants()

	if l.cursor == 0 {
		return ir.Transaction{}, false
	}
	l.cursor--
	tx := l.entries[l.cursor].Inverse()
	tx.Source = ir.SourceUndo
	return tx, true
}

// Redo returns the transaction at the cursor, tagged SourceRedo, and moves
// the cursor forward. Returns false when already at the end.
func (l *Log) Redo() (ir.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkInvariants()

	if l.cursor == len(l.entries) {
		return ir.Transaction{}, false
	}
	tx := l.entries[l.cursor]
	tx.Changes = slices.Clone(tx.Changes)
	tx.Source = ir.SourceRedo
	l.cursor++
	return tx, true
}

// Len returns the number of retained transactions.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Cursor returns the number of transactions currently applied.
func (l *Log) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// CanUndo reports whether Undo would return a transaction.
func (l *Log) CanUndo() bool {
	return l.Cursor() > 0
}

// CanRedo reports whether Redo would return a transaction.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.entries)
}

// Evicted returns how many transactions were dropped by the entry cap.
func (l *Log) Evicted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

// Reset forgets all history. The clock keeps counting.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.entries = l.entries[:0]
	l.cursor = 0
}

// checkInvariants panics if the cursor escaped the log. That can only be a
// logic defect, never bad input. Caller must hold mu.
func (l *Log) checkInvariants() {
	if l.cursor < 0 || l.cursor > len(l.entries) {
		panic(fmt.Sprintf("txlog: cursor %d out of bounds [0, %d]", l.cursor, len(l.entries)))
	}
}
