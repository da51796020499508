package records

import (
	"errors"
	"fmt"
)

var (
	errIDEmpty   = errors.New("id cannot be empty")
	errPatchID   = errors.New("patch cannot change the id")
	errNoShow    = errors.New("show not found")
	errNilRecord = errors.New("record cannot be nil")
	errNullRow   = errors.New("collection contains a null row")
)

// DecodeError reports a persisted collection that is not valid JSON for its
// type. The collection is left untouched.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
