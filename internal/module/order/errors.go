package order

import "errors"

var (
	// ErrOrderNotFound is returned when the order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrNotOwner is returned when the order belongs to another account.
	ErrNotOwner = errors.New("order does not belong to account")
)
