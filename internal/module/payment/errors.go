package payment

import "errors"

var (
	// ErrInvalidSignature is returned when the webhook signature does not
	// verify against the endpoint secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingAccount is returned when an event carries no account id in
	// its metadata.
	ErrMissingAccount = errors.New("event metadata missing account_id")
)
