package payment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for payment event data access.
type Repository interface {
	// RecordIfNew inserts the event and reports whether this delivery was the
	// first. A duplicate id leaves the existing row untouched.
	RecordIfNew(ctx context.Context, event *WebhookEvent) (bool, error)
	SetOutcome(ctx context.Context, eventID string, status EventStatus, errMsg string) error
	GetEvent(ctx context.Context, eventID string) (*WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RecordIfNew(ctx context.Context, event *WebhookEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, fmt.Errorf("record webhook event: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetOutcome(ctx context.Context, eventID string, status EventStatus, errMsg string) error {
	err := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"status": status,
			"error":  errMsg,
		}).Error
	if err != nil {
		return fmt.Errorf("set webhook event outcome: %w", err)
	}
	return nil
}

func (r *repository) GetEvent(ctx context.Context, eventID string) (*WebhookEvent, error) {
	var event WebhookEvent
	err := r.db.WithContext(ctx).First(&event, "id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return &event, nil
}
