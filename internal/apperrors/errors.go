// Package apperrors defines the error kinds shared across stores, services
// and HTTP handlers. Callers classify failures with errors.Is and map them to
// transport responses at the edge.
package apperrors

import "errors"

var (
	// ErrNotFound indicates an id (plus partition key) did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conditional create failed because the record
	// already exists (duplicate admin email, duplicate order id, duplicate
	// reconciliation for a payment intent).
	ErrConflict = errors.New("already exists")

	// ErrValidation indicates the caller supplied an unusable request.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated indicates a missing or invalid session token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnavailable indicates a transport or dependency failure.
	ErrUnavailable = errors.New("dependency unavailable")
)
