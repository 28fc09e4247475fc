package setup

import "errors"

var (
	ErrNotFound   = errors.New("setup session not found")
	ErrIncomplete = errors.New("setup session incomplete")
)

// IncompleteError names the first missing answer.
type IncompleteError struct {
	Field string
}

func (e IncompleteError) Error() string {
	return "setup session incomplete: " + e.Field + " is required"
}

func (e IncompleteError) Unwrap() error { return ErrIncomplete }

func incomplete(field string) error {
	return IncompleteError{Field: field}
}
