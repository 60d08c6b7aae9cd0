package schema

import (
	"fmt"
	"sync"

	"github.com/roach88/dashstore/internal/ir"
)

// FieldType is the primitive type of a record field.
type FieldType string

const (
	TypeString FieldType = ir.KindString
	TypeInt    FieldType = ir.KindInt
	TypeBool   FieldType = ir.KindBool
)

// ValidTypes defines the allowed field types.
var ValidTypes = map[FieldType]bool{
	TypeString: true,
	TypeInt:    true,
	TypeBool:   true,
}

// Field declares one record field.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
	Min      *int64    `json:"min,omitempty"` // Only meaningful for int fields
}

// TableSchema declares the shape of the records in one table.
type TableSchema struct {
	Name       string  `json:"name"`
	PrimaryKey string  `json:"primary_key"`
	Tombstone  string  `json:"tombstone,omitempty"` // bool field marking soft-deleted rows
	Fields     []Field `json:"fields"`            // Declaration order

	indexOnce sync.Once
	index     map[string]int
}

// Field returns the declaration of the named field.
func (s *TableSchema) Field(name string) (Field, bool) {
	s.indexOnce.Do(func() {
		s.index = make(map[string]int, len(s.Fields))
		for i, f := range s.Fields {
			s.index[f.Name] = i
		}
	})
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// FieldNames returns the field names in declaration order.
func (s *TableSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// ValidateValue checks a single field write. A nil value unsets the field
// and is valid for any declared field.
func (s *TableSchema) ValidateValue(field string, v ir.IRValue) error {
	decl, ok := s.Field(field)
	if !ok {
		return &SchemaError{
			Code:    ErrCodeUnknownField,
			Table:   s.Name,
			Field:   field,
			Message: "field is not declared",
		}
	}
	if v == nil {
		return nil
	}
	if kind := ir.KindOf(v); kind != string(decl.Type) {
		return &SchemaError{
			Code:    ErrCodeTypeMismatch,
			Table:   s.Name,
			Field:   field,
			Message: fmt.Sprintf("expected %s, got %s", decl.Type, kind),
		}
	}
	if decl.Min != nil {
		if n := int64(v.(ir.IRInt)); n < *decl.Min {
			return &SchemaError{
				Code:    ErrCodeConstraint,
				Table:   s.Name,
				Field:   field,
				Message: fmt.Sprintf("value %d is below minimum %d", n, *decl.Min),
			}
		}
	}
	return nil
}

// Validate checks a partial record. Fields are checked in canonical key
// order so the reported error is deterministic.
func (s *TableSchema) Validate(partial ir.IRObject) error {
	for _, k := range partial.SortedKeys() {
		if err := s.ValidateValue(k, partial[k]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRecord checks a complete record: Validate plus every required
// field present and non-nil.
func (s *TableSchema) ValidateRecord(rec ir.IRObject) error {
	if err := s.Validate(rec); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if v, ok := rec[f.Name]; !ok || v == nil {
			return &SchemaError{
				Code:    ErrCodeMissingField,
				Table:   s.Name,
				Field:   f.Name,
				Message: "required field is missing",
			}
		}
	}
	return nil
}

// IsRemoved reports whether rec is tombstoned under this schema.
func (s *TableSchema) IsRemoved(rec ir.IRObject) bool {
	if s.Tombstone == "" {
		return false
	}
	return rec.Bool(s.Tombstone)
}
