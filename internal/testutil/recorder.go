package testutil

import (
	"sync"

	"github.com/roach88/dashstore/internal/ir"
)

// Recorder collects every change set delivered to it. Its Listen method
// has the notify.Listener signature:
//
//	rec := testutil.NewRecorder()
//	sub, _ := store.ListenTable(schema.Widget(), rec.Listen)
type Recorder struct {
	mu   sync.Mutex
	sets []ir.ChangeSet
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Listen records cs.
func (r *Recorder) Listen(cs ir.ChangeSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, cs)
}

// ChangeSets returns a copy of everything recorded so far.
func (r *Recorder) ChangeSets() []ir.ChangeSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.ChangeSet, len(r.sets))
	copy(out, r.sets)
	return out
}

// Count returns the number of change sets recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

// Last returns the most recent change set, or false if none arrived.
func (r *Recorder) Last() (ir.ChangeSet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sets) == 0 {
		return ir.ChangeSet{}, false
	}
	return r.sets[len(r.sets)-1], true
}

// Sources returns the source of each recorded change set, in order.
func (r *Recorder) Sources() []ir.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Source, len(r.sets))
	for i, cs := range r.sets {
		out[i] = cs.Source
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = nil
}
