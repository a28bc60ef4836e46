package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no entity has the requested key.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches any *ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrInternal wraps storage or backend failures.
	ErrInternal = errors.New("internal storage error")
)

// ConflictError reports a uniqueness violation on Field ("email" or "username").
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// Is lets errors.Is(err, ErrConflict) match any conflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// internal wraps a backend error so that errors.Is(err, ErrInternal) holds
// while the original cause stays available for logging.
func internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

// ConflictField returns the colliding field when err is a conflict.
func ConflictField(err error) (string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	return "", false
}
