package provider

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the endpoint class breaker is open.
// Callers should treat it as retryable-later, never as a permanent failure.
var ErrCircuitOpen = errors.New("provider circuit open")

// Error describes a failed provider call. StatusCode is the HTTP status
// (0 for transport errors); APICode is the provider's body-level code when
// the HTTP exchange itself succeeded.
type Error struct {
	Endpoint   string
	StatusCode int
	APICode    int
	Message    string
}

func (e *Error) Error() string {
	if e.APICode != 0 {
		return fmt.Sprintf("provider rejected %s (code %d): %s", e.Endpoint, e.APICode, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider call %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider call %s failed: %s", e.Endpoint, e.Message)
}

// Permanent reports whether retrying cannot help: 4xx responses and
// body-level rejections. Transport errors, timeouts, and 5xx are transient.
func (e *Error) Permanent() bool {
	if e.APICode != 0 {
		return true
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsPermanent reports whether err is a permanent provider error.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Permanent()
}
