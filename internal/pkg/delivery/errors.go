package delivery

import "errors"

// Error taxonomy of the delivery state machine. Controllers map these to
// HTTP statuses; everything else is a server error.
var (
	// ErrNotFound means the delivery does not exist.
	ErrNotFound = errors.New("delivery not found")

	// ErrForbidden means the caller is authenticated but not a party to the
	// delivery (or not the party allowed to perform the operation). Never
	// retried.
	ErrForbidden = errors.New("caller is not allowed to act on this delivery")

	// ErrInvalidState means a state machine guard rejected the operation.
	ErrInvalidState = errors.New("delivery is not in a valid state for this operation")

	// ErrUpstream wraps billing provider failures. No local writes happened,
	// so the whole operation is safe to retry.
	ErrUpstream = errors.New("billing provider call failed")
)
