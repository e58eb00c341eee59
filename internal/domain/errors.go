package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the caller supplied an unusable input.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyCart is returned when checkout is attempted on a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrConflict indicates the operation clashes with one already in progress.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates the retail backend rejected the caller's token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream indicates the retail backend failed or answered with an unexpected status.
	ErrUpstream = errors.New("retail backend error")
)
