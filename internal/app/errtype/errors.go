package errtype

import "errors"

var (
	// ErrNotFound represents the error for the cases when some entity is not found.
	ErrNotFound = errors.New("not found")
	// ErrBadInput represents the error for the cases when the user input is invalid.
	ErrBadInput = errors.New("bad input")
	// ErrUnauthorized represents the error for the cases when the authorization is required.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidContext represents the error for the cases when the deployment context violates its range invariants.
	ErrInvalidContext = errors.New("invalid context")
	// ErrInvalidOperation represents the error for the cases when an operation is not allowed in the current state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidPolicy represents the error for the cases when the promotion policy thresholds are inconsistent.
	ErrInvalidPolicy = errors.New("invalid policy")
)
