package billing

import "time"

// SubscriptionStatus is the lifecycle state of a plan subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription links an account to a plan. At most one active subscription
// per account at any instant.
type Subscription struct {
	ID        string             `json:"id" gorm:"primaryKey"`
	AccountID string             `json:"account_id" gorm:"not null;index"`
	PlanID    string             `json:"plan_id" gorm:"not null"`
	Status    SubscriptionStatus `json:"status" gorm:"not null;index"`
	StartDate time.Time          `json:"start_date" gorm:"not null"`
	EndDate   *time.Time         `json:"end_date"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TableName returns the table name for Subscription.
func (Subscription) TableName() string {
	return "plan_subscriptions"
}

// UsagePeriod counts resource seconds consumed against a plan allowance in
// one UTC calendar month. Created lazily on first quote of the period.
type UsagePeriod struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	AccountID   string    `json:"account_id" gorm:"not null;uniqueIndex:idx_usage_period"`
	PlanID      string    `json:"plan_id" gorm:"not null;uniqueIndex:idx_usage_period"`
	PeriodStart time.Time `json:"period_start" gorm:"not null;uniqueIndex:idx_usage_period"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null"`
	SecondsUsed int64     `json:"seconds_used" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for UsagePeriod.
func (UsagePeriod) TableName() string {
	return "plan_usage_periods"
}

// CurrentPeriodBounds returns the UTC calendar month containing now.
func CurrentPeriodBounds(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
