// Package table holds the authoritative current value of every record in
// one schema-declared table.
//
// A Table is a pure projection of the transactions applied to it so far. It
// knows nothing about undo, history or listeners: callers hand it field-level
// change sets and it applies each set atomically or not at all.
//
// Thread-safety: Table is not safe for concurrent use. It is owned by a
// single placement store, which serializes access.
package table

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/dashstore/internal/ir"
	"github.com/roach88/dashstore/internal/schema"
)

// ErrEmptyRecordID is returned when a change does not name a record.
var ErrEmptyRecordID = errors.New("change has empty record id")

// row is one stored record plus its creation order.
type row struct {
	id      string
	created int64
	fields  ir.IRObject
}

// Table maps record ids to records.
type Table struct {
	schema  *schema.TableSchema
	rows    map[string]*row
	version int64 // bumped by every applied change set and purge
	created int64 // creation counter for stable iteration order
}

// New creates an empty table for the given schema.
func New(s *schema.TableSchema) *Table {
	return &Table{
		schema: s,
		rows:   make(map[string]*row),
	}
}

// Schema returns the table's schema.
func (t *Table) Schema() *schema.TableSchema {
	return t.schema
}

// Version returns the number of change sets applied so far.
func (t *Table) Version() int64 {
	return t.version
}

// Len returns the number of stored records, tombstones included.
func (t *Table) Len() int {
	return len(t.rows)
}

// Get returns a copy of the record with the given id, tombstoned or not.
func (t *Table) Get(id string) (ir.IRObject, bool) {
	r, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return r.fields.Clone(), true
}

// ApplyChanges writes every change as one atomic unit.
//
// All changes are validated before anything is written, so a rejected set
// leaves the table untouched. A change naming an unknown record creates an
// empty shell first; a change with a nil Next removes the field; a record
// left with no fields is dropped. An empty set is a no-op.
func (t *Table) ApplyChanges(changes []ir.Change) error {
	if len(changes) == 0 {
		return nil
	}
	for _, c := range changes {
		if err := t.validate(c); err != nil {
			return fmt.Errorf("apply changes: %w", err)
		}
	}

	touched := make(map[string]*row, 1)
	for _, c := range changes {
		r, ok := t.rows[c.RecordID]
		if !ok {
			t.created++
			r = &row{id: c.RecordID, created: t.created, fields: ir.IRObject{}}
			t.rows[c.RecordID] = r
		}
		if c.Next == nil {
			delete(r.fields, c.Field)
		} else {
			r.fields[c.Field] = c.Next
		}
		touched[c.RecordID] = r
	}
	for id, r := range touched {
		if len(r.fields) == 0 {
			delete(t.rows, id)
		}
	}

	t.version++
	return nil
}

func (t *Table) validate(c ir.Change) error {
	if c.RecordID == "" {
		return ErrEmptyRecordID
	}
	if err := t.schema.ValidateValue(c.Field, c.Next); err != nil {
		return err
	}
	// The primary key mirrors the record id and can never be rewritten.
	if c.Field == t.schema.PrimaryKey && c.Next != nil && c.Next != ir.IRString(c.RecordID) {
		return &schema.SchemaError{
			Code:    schema.ErrCodeConstraint,
			Table:   t.schema.Name,
			Field:   c.Field,
			Message: fmt.Sprintf("primary key must equal record id %q", c.RecordID),
		}
	}
	return nil
}

// Iterate yields copies of the live (non-tombstoned) records in creation
// order. The set of records is captured when iteration starts; each call
// returns a fresh, restartable sequence.
func (t *Table) Iterate() iter.Seq[ir.IRObject] {
	return t.records(false)
}

// All is Iterate including tombstoned records.
func (t *Table) All() iter.Seq[ir.IRObject] {
	return t.records(true)
}

func (t *Table) records(includeRemoved bool) iter.Seq[ir.IRObject] {
	return func(yield func(ir.IRObject) bool) {
		for _, r := range t.snapshot() {
			if !includeRemoved && t.schema.IsRemoved(r.fields) {
				continue
			}
			if !yield(r.fields) {
				return
			}
		}
	}
}

// snapshot copies the rows in creation order.
func (t *Table) snapshot() []row {
	rows := make([]row, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, row{id: r.id, created: r.created, fields: r.fields.Clone()})
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Compare(a.created, b.created)
	})
	return rows
}

// purge hard-deletes a record. Returns false if it did not exist.
// Purging bypasses the transaction log.
func (t *Table) purge(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	t.version++
	return true
}

// PurgeRemoved hard-deletes every tombstoned record and returns their ids
// in creation order. It is only used by compaction.
func (t *Table) PurgeRemoved() []string {
	var ids []string
	for _, r := range t.snapshot() {
		if t.schema.IsRemoved(r.fields) && t.purge(r.id) {
			ids = append(ids, r.id)
		}
	}
	return ids
}
