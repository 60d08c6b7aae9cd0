package schema

import (
	"fmt"
	"sync"
)

// Registry holds the table schemas known to a process.
// Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*TableSchema
	order  []string
}

// NewRegistry creates a registry holding the given schemas.
// Panics on duplicate table names.
func NewRegistry(tables ...*TableSchema) *Registry {
	r := &Registry{tables: make(map[string]*TableSchema)}
	for _, t := range tables {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a schema. Returns an error if the name is already taken.
func (r *Registry) Register(t *TableSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[t.Name]; ok {
		return fmt.Errorf("table %q already registered", t.Name)
	}
	r.tables[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the schema for the named table.
func (r *Registry) Lookup(name string) (*TableSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Names returns registered table names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
