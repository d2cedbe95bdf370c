package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by keyed lookups with an empty result.
var ErrNotFound = errors.New("not found")

// ErrLocked is returned when another pipeline run holds the run lock.
var ErrLocked = errors.New("pipeline run already in progress")

// ValidationError reports a malformed or out-of-range request parameter.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// LoadError is a strict coercion failure while reading a source file.
// Row is 1-based and counts data rows only (the header is row 0).
type LoadError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("row %d: column %s: cannot convert %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IntegrityError is a constraint violation raised by the store during an
// ingestion write. The whole batch has been rolled back when it surfaces.
type IntegrityError struct {
	Row int // 1-based data row, 0 when the failing write is not row-scoped
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("integrity violation at row %d (%s): %v", e.Row, e.Op, e.Err)
	}
	return fmt.Sprintf("integrity violation (%s): %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
