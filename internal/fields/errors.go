package fields

import "errors"

// ErrForbidden collapses "does not exist" and "not permitted" on read paths.
// Callers must not be able to tell the two apart, so schema existence never
// leaks to unauthorized callers.
var ErrForbidden = errors.New("field does not exist or access is denied")

// ValidationError rejects a malformed field specification before any write
// is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid field " + e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
