package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for subscription and usage data access.
type Repository interface {
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetActiveSubscription(ctx context.Context, accountID string, now time.Time) (*Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, subID string, status SubscriptionStatus, endDate *time.Time) error

	// GetOrCreateUsagePeriod returns the period row for the given bounds,
	// creating it when absent.
	GetOrCreateUsagePeriod(ctx context.Context, accountID, planID string, start, end time.Time) (*UsagePeriod, error)
	// AddSecondsUsed adjusts the period counter atomically. Negative
	// deltas release seconds; the counter never goes below zero.
	AddSecondsUsed(ctx context.Context, periodID string, seconds int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new billing repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *repository) GetActiveSubscription(ctx context.Context, accountID string, now time.Time) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)",
			accountID, SubscriptionActive, now, now).
		Order("start_date DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return &sub, nil
}

func (r *repository) UpdateSubscriptionStatus(ctx context.Context, subID string, status SubscriptionStatus, endDate *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if endDate != nil {
		updates["end_date"] = endDate
	}
	err := r.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("id = ?", subID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

func (r *repository) GetOrCreateUsagePeriod(ctx context.Context, accountID, planID string, start, end time.Time) (*UsagePeriod, error) {
	period := &UsagePeriod{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		PlanID:      planID,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	// Insert-if-absent keeps lazy creation race-free across concurrent quotes.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(period).Error
	if err != nil {
		return nil, fmt.Errorf("create usage period: %w", err)
	}

	var existing UsagePeriod
	err = r.db.WithContext(ctx).
		Where("account_id = ? AND plan_id = ? AND period_start = ?", accountID, planID, start).
		First(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("get usage period: %w", err)
	}
	return &existing, nil
}

func (r *repository) AddSecondsUsed(ctx context.Context, periodID string, seconds int64) error {
	err := r.db.WithContext(ctx).
		Model(&UsagePeriod{}).
		Where("id = ?", periodID).
		Update("seconds_used", gorm.Expr("GREATEST(seconds_used + ?, 0)", seconds)).Error
	if err != nil {
		return fmt.Errorf("add seconds used: %w", err)
	}
	return nil
}
