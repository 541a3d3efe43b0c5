package payment

import (
	"encoding/json"
	"time"
)

// EventStatus is the processing disposition recorded on a webhook event row.
type EventStatus string

const (
	EventReceived  EventStatus = "received"
	EventProcessed EventStatus = "processed"
	EventSkipped   EventStatus = "skipped"
	EventError     EventStatus = "error"
)

// WebhookEvent is one payment gateway notification, keyed by the gateway's
// own event id. The primary key is the idempotency guard: a duplicate
// delivery fails the insert and is acknowledged without effect.
type WebhookEvent struct {
	ID      string          `json:"id" gorm:"primaryKey"`
	Type    string          `json:"type" gorm:"not null;index"`
	Payload json.RawMessage `json:"payload" gorm:"type:jsonb"`

	Status EventStatus `json:"status" gorm:"not null;default:received"`
	Error  string      `json:"error"`

	AccountID string `json:"account_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for WebhookEvent.
func (WebhookEvent) TableName() string {
	return "payment_webhook_events"
}
