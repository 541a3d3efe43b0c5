package job

import "errors"

var (
	// ErrJobNotFound is returned when the job does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrAlreadyTerminal is returned when acting on a completed, failed, or
	// cancelled job.
	ErrAlreadyTerminal = errors.New("job already terminal")
	// ErrOrderNotFulfillable is returned when the order is not pending.
	ErrOrderNotFulfillable = errors.New("order cannot be fulfilled in its current state")
	// ErrTemplateNotFound is returned when the item has no workflow template.
	ErrTemplateNotFound = errors.New("workflow template not found")
	// ErrNotOwner is returned when the job belongs to another account.
	ErrNotOwner = errors.New("job does not belong to account")
)
