package credits

import "errors"

var (
	// ErrInsufficientCredits is returned when a debit exceeds the balance.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrAccountNotFound is returned when the account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidAmount is returned when a ledger amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")
)
