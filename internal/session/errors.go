package session

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound matches every failure caused by an id that is not in
// the pool, whether it never existed, exited, or was closed.
var ErrSessionNotFound = errors.New("session not found")

// NotFoundError carries the offending id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Session %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound
}

func notFound(id string) error {
	return &NotFoundError{ID: id}
}
