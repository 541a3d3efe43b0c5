package billing

import "errors"

var (
	// ErrNoActiveSubscription is returned when the account has no active plan.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrSubscriptionExists is returned when activating a plan for an account
	// that already has an active subscription.
	ErrSubscriptionExists = errors.New("active subscription already exists")
)
