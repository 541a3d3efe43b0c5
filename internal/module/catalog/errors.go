package catalog

import "errors"

var (
	// ErrItemNotFound is returned when a catalog item does not exist or is inactive.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrPlanNotFound is returned when a plan does not exist or is inactive.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrInvalidModifier is returned when a modifier fails boundary validation.
	ErrInvalidModifier = errors.New("invalid modifier definition")
)
