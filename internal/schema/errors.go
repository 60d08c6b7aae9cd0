package schema

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes schema violations.
type ErrorCode string

const (
	// ErrCodeUnknownField indicates a write names a field the table does not declare.
	ErrCodeUnknownField ErrorCode = "E201"

	// ErrCodeTypeMismatch indicates a value of the wrong kind for its field.
	ErrCodeTypeMismatch ErrorCode = "E202"

	// ErrCodeMissingField indicates a full record lacks a required field.
	ErrCodeMissingField ErrorCode = "E203"

	// ErrCodeConstraint indicates a value outside the field's declared bounds.
	ErrCodeConstraint ErrorCode = "E204"
)

// SchemaError reports a write that does not conform to a table schema.
type SchemaError struct {
	Code    ErrorCode
	Table   string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Table, e.Field, e.Message)
}

// IsSchemaError returns true if err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsUnknownField returns true if err is an unknown-field schema error.
func IsUnknownField(err error) bool {
	return hasCode(err, ErrCodeUnknownField)
}

// IsTypeMismatch returns true if err is a type-mismatch schema error.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsMissingField returns true if err is a missing-field schema error.
func IsMissingField(err error) bool {
	return hasCode(err, ErrCodeMissingField)
}

// IsConstraint returns true if err is a constraint schema error.
func IsConstraint(err error) bool {
	return hasCode(err, ErrCodeConstraint)
}

func hasCode(err error, code ErrorCode) bool {
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
