package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Typed causes raised by collaborators. The persistence layer classifies
// driver errors into these before they leave the repo package, so Translate
// never inspects driver internals.

// CastError reports a value whose type does not match the schema.
type CastError struct {
	Field string
	Value any
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast to %s failed for value %v", e.Field, e.Value)
}

// DuplicateKeyError reports a uniqueness-constraint violation.
type DuplicateKeyError struct {
	Field string
	Value any
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %s=%v", e.Field, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// SchemaError reports one or more field violations detected by the store's
// schema, in field declaration order.
type SchemaError struct {
	Violations []FieldError
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return "schema validation failed: " + strings.Join(msgs, "; ")
}

// Credential verification failures. Verifiers wrap these with %w.
var (
	ErrTokenInvalid = errors.New("token malformed or unverifiable")
	ErrTokenExpired = errors.New("token expired")
)
