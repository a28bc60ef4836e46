package services

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned for both unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ValidationError rejects malformed input before it reaches a store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
