package ir

// Source tags where a committed transaction came from.
type Source string

const (
	// SourceUser marks a transaction produced by a public mutator.
	SourceUser Source = "user"
	// SourceUndo marks the inverse of a logged transaction being replayed.
	SourceUndo Source = "undo"
	// SourceRedo marks a logged transaction being replayed forward.
	SourceRedo Source = "redo"
	// SourcePersist marks the dirty-flag reset after a save.
	SourcePersist Source = "persist"
)

// IsReplay reports whether the transaction replays history and therefore
// must not be appended to the transaction log.
func (s Source) IsReplay() bool {
	return s == SourceUndo || s == SourceRedo
}

// Change is a single field-level modification.
// A nil Previous means the field did not exist; a nil Next removes it.
type Change struct {
	RecordID string
	Field    string
	Previous IRValue
	Next     IRValue
}

// Inverse returns the change that undoes c.
func (c Change) Inverse() Change {
	return Change{
		RecordID: c.RecordID,
		Field:    c.Field,
		Previous: c.Next,
		Next:     c.Previous,
	}
}

// Transaction is an atomic, ordered set of changes to one table.
type Transaction struct {
	Seq     int64
	Source  Source
	Table   string
	Changes []Change
}

// Inverse returns a transaction that undoes t: the changes are reversed in
// order and each one has its previous and next values swapped.
func (t Transaction) Inverse() Transaction {
	inv := Transaction{
		Seq:     t.Seq,
		Source:  t.Source,
		Table:   t.Table,
		Changes: make([]Change, len(t.Changes)),
	}
	for i, c := range t.Changes {
		inv.Changes[len(t.Changes)-1-i] = c.Inverse()
	}
	return inv
}

// RecordIDs returns the distinct record ids touched by t, in first-touch order.
func (t Transaction) RecordIDs() []string {
	seen := make(map[string]bool, len(t.Changes))
	var ids []string
	for _, c := range t.Changes {
		if !seen[c.RecordID] {
			seen[c.RecordID] = true
			ids = append(ids, c.RecordID)
		}
	}
	return ids
}

// ChangeSet is the batch of changes delivered to listeners after one
// committed transaction.
type ChangeSet struct {
	Table   string
	Seq     int64
	Source  Source
	Changes []Change
}

// ChangeSet returns the notification payload for t. The change slice is
// copied so listeners cannot alias the log.
func (t Transaction) ChangeSet() ChangeSet {
	changes := make([]Change, len(t.Changes))
	copy(changes, t.Changes)
	return ChangeSet{
		Table:   t.Table,
		Seq:     t.Seq,
		Source:  t.Source,
		Changes: changes,
	}
}
