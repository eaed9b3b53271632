package storage

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound signals that the requested movie does not exist.
var ErrNotFound = errors.New("movie not found")

// StoreError wraps an adapter failure with the repository operation that
// produced it. Callers map every StoreError to the same external failure; the
// operation and cause are kept for logging.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Cause returns the raw message reported by the datastore.
func (e *StoreError) Cause() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Err.Error()
}

func newStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// ValidationError lists the payload fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid movie"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return strings.Join(parts, "; ")
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
