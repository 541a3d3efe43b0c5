package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned when the quoted item is absent or inactive.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// MarginError rejects a quote whose margin falls below the configured floor.
// It indicates misconfigured catalog pricing and is never silently clamped.
type MarginError struct {
	Margin  float64
	Minimum float64
}

func (e *MarginError) Error() string {
	return fmt.Sprintf("margin too low: %.1f%% < %.1f%%", e.Margin*100, e.Minimum*100)
}

// IsMarginTooLow reports whether err is a margin rejection.
func IsMarginTooLow(err error) bool {
	var me *MarginError
	return errors.As(err, &me)
}
