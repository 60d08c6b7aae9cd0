package schema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dashstore/internal/ir"
)

//go:embed widget.cue
var widgetCUE []byte

var (
	widgetOnce   sync.Once
	widgetSchema *TableSchema
)

// Widget returns the built-in widget table schema, compiled from the
// embedded widget.cue on first use.
//
// Panics if the embedded schema does not compile; that is a build defect.
func Widget() *TableSchema {
	widgetOnce.Do(func() {
		tables, err := Compile(widgetCUE, "widget.cue")
		if err != nil {
			panic(fmt.Sprintf("schema: embedded widget.cue: %v", err))
		}
		for _, t := range tables {
			if t.Name == ir.WidgetTable {
				widgetSchema = t
			}
		}
		if widgetSchema == nil {
			panic("schema: embedded widget.cue does not declare the widget table")
		}
	})
	return widgetSchema
}

// CompileError is returned when CUE source cannot be turned into schemas.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses CUE source and returns every table declared under the
// top-level "table" struct, in declaration order.
//
//	tables, err := schema.Compile(src, "dashboard.cue")
func Compile(src []byte, filename string) ([]*TableSchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "table",
			Message: "no tables declared",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tables []*TableSchema
	for iter.Next() {
		t, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, &CompileError{
			Field:   "table",
			Message: "no tables declared",
			Pos:     tablesVal.Pos(),
		}
	}
	return tables, nil
}

// compileTable builds one TableSchema and checks it is self-consistent.
func compileTable(name string, v cue.Value) (*TableSchema, error) {
	t := &TableSchema{Name: name}

	pk, err := lookupString(v, "primary_key", true)
	if err != nil {
		return nil, err
	}
	t.PrimaryKey = pk

	t.Tombstone, err = lookupString(v, "tombstone", false)
	if err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "table." + name + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(name, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
	}

	// The primary key must be a required string; the tombstone a bool.
	pkField, ok := t.Field(t.PrimaryKey)
	if !ok || pkField.Type != TypeString {
		return nil, &CompileError{
			Field:   "table." + name + ".primary_key",
			Message: fmt.Sprintf("primary key %q must be a declared string field", t.PrimaryKey),
			Pos:     v.Pos(),
		}
	}
	if t.Tombstone != "" {
		if f, ok := t.Field(t.Tombstone); !ok || f.Type != TypeBool {
			return nil, &CompileError{
				Field:   "table." + name + ".tombstone",
				Message: fmt.Sprintf("tombstone %q must be a declared bool field", t.Tombstone),
				Pos:     v.Pos(),
			}
		}
	}
	return t, nil
}

func compileField(table, name string, v cue.Value) (Field, error) {
	f := Field{Name: name}
	path := "table." + table + ".fields." + name

	typ, err := lookupString(v, "type", true)
	if err != nil {
		return f, err
	}
	f.Type = FieldType(typ)
	if !ValidTypes[f.Type] {
		return f, &CompileError{
			Field:   path + ".type",
			Message: fmt.Sprintf("invalid type %q: must be string, int or bool", typ),
			Pos:     v.Pos(),
		}
	}

	if reqVal := v.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
		f.Required, err = reqVal.Bool()
		if err != nil {
			return f, formatCUEError(err)
		}
	}

	if minVal := v.LookupPath(cue.ParsePath("min")); minVal.Exists() {
		if f.Type != TypeInt {
			return f, &CompileError{
				Field:   path + ".min",
				Message: "min is only allowed on int fields",
				Pos:     minVal.Pos(),
			}
		}
		n, err := minVal.Int64()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.Min = &n
	}
	return f, nil
}

func lookupString(v cue.Value, field string, required bool) (string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		if required {
			return "", &CompileError{
				Field:   field,
				Message: field + " is required",
				Pos:     v.Pos(),
			}
		}
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
