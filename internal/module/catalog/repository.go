package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for catalog data access.
type Repository interface {
	GetItemByCode(ctx context.Context, code string) (*Item, error)
	ListActiveItems(ctx context.Context) ([]*Item, error)
	GetModifiersByCodes(ctx context.Context, codes []string) ([]*Modifier, error)
	GetPlanByID(ctx context.Context, id string) (*Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*Plan, error)
	ListActivePlans(ctx context.Context) ([]*Plan, error)

	UpsertItems(ctx context.Context, items []*Item) error
	UpsertModifiers(ctx context.Context, modifiers []*Modifier) error
	UpsertPlans(ctx context.Context, plans []*Plan) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetItemByCode(ctx context.Context, code string) (*Item, error) {
	var item Item
	err := r.db.WithContext(ctx).First(&item, "code = ? AND active = ?", code, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item by code: %w", err)
	}
	return &item, nil
}

func (r *repository) ListActiveItems(ctx context.Context) ([]*Item, error) {
	var items []*Item
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("base_price_cents ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	return items, nil
}

func (r *repository) GetModifiersByCodes(ctx context.Context, codes []string) ([]*Modifier, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var modifiers []*Modifier
	err := r.db.WithContext(ctx).
		Where("code IN ? AND active = ?", codes, true).
		Find(&modifiers).Error
	if err != nil {
		return nil, fmt.Errorf("get modifiers by codes: %w", err)
	}
	return modifiers, nil
}

func (r *repository) GetPlanByID(ctx context.Context, id string) (*Plan, error) {
	var plan Plan
	err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func (r *repository) GetPlanByCode(ctx context.Context, code string) (*Plan, error) {
	var plan Plan
	err := r.db.WithContext(ctx).First(&plan, "code = ? AND active = ?", code, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan by code: %w", err)
	}
	return &plan, nil
}

func (r *repository) ListActivePlans(ctx context.Context) ([]*Plan, error) {
	var plans []*Plan
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("monthly_price_cents ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}
	return plans, nil
}

func (r *repository) UpsertItems(ctx context.Context, items []*Item) error {
	if len(items) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "category", "base_resource_seconds", "base_price_cents", "default_modifiers", "active", "updated_at"}),
		}).
		Create(&items).Error
	if err != nil {
		return fmt.Errorf("upsert items: %w", err)
	}
	return nil
}

func (r *repository) UpsertModifiers(ctx context.Context, modifiers []*Modifier) error {
	if len(modifiers) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"label", "description", "price_multiplier", "flat_surcharge_cents", "active", "updated_at"}),
		}).
		Create(&modifiers).Error
	if err != nil {
		return fmt.Errorf("upsert modifiers: %w", err)
	}
	return nil
}

func (r *repository) UpsertPlans(ctx context.Context, plans []*Plan) error {
	if len(plans) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "monthly_price_cents", "included_seconds", "overage_rate_per_second_cents", "active", "updated_at"}),
		}).
		Create(&plans).Error
	if err != nil {
		return fmt.Errorf("upsert plans: %w", err)
	}
	return nil
}
