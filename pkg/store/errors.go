package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrReadOnly is returned by write operations of a store in read-only mode.
	ErrReadOnly = errors.New("operation denied: store is in read-only mode")
)

// NotFoundError reports a row that is missing at write time.
type NotFoundError struct {
	Type string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Type)
	}
	return fmt.Sprintf("%s %s not found", e.Type, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a write rejected by a uniqueness rule.
type ConflictError struct {
	Type string
	ID   string
}

func (e *ConflictError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s already exists", e.Type)
	}
	return fmt.Sprintf("%s %s already exists", e.Type, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFound is a shorthand for building a *NotFoundError.
func NotFound(typ string, id fmt.Stringer) error {
	return &NotFoundError{Type: typ, ID: stringOf(id)}
}

// Conflict is a shorthand for building a *ConflictError.
func Conflict(typ string, id fmt.Stringer) error {
	return &ConflictError{Type: typ, ID: stringOf(id)}
}

func stringOf(id fmt.Stringer) string {
	if id == nil {
		return ""
	}
	return id.String()
}
