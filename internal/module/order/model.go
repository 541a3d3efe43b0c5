package order

import (
	"time"

	"github.com/lib/pq"
)

// Status is the order lifecycle state. Transitions are forward-only; no
// transition leaves a terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the move from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// Order is an accepted quote. The price fields snapshot the quote at
// acceptance and are never recomputed.
type Order struct {
	ID          string `json:"id" gorm:"primaryKey"`
	OrderNumber string `json:"order_number" gorm:"uniqueIndex;not null"`
	AccountID   string `json:"account_id" gorm:"not null;index"`
	ItemCode    string `json:"item_code" gorm:"not null"`
	Quantity    int64  `json:"quantity" gorm:"not null"`

	AppliedModifiers  pq.StringArray `json:"applied_modifiers" gorm:"type:text[]"`
	PriceCents        int64          `json:"price_cents" gorm:"not null"`
	InternalCostCents int64          `json:"internal_cost_cents" gorm:"not null"`
	Margin            float64        `json:"margin" gorm:"not null"`
	TotalSeconds      int64          `json:"total_seconds" gorm:"not null"`
	SecondsFromPlan   int64          `json:"seconds_from_plan" gorm:"not null;default:0"`
	OverageSeconds    int64          `json:"overage_seconds" gorm:"not null;default:0"`

	Status    Status    `json:"status" gorm:"not null;index;default:pending"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Order.
func (Order) TableName() string {
	return "orders"
}
