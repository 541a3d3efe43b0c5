package order

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository defines the interface for order data access.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Order, error)
	// UpdateStatus performs a conditional transition and reports whether the
	// row actually moved. Guards against terminal-state regressions at the
	// database level.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var orders []*Order
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, from []Status, to Status) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("update order status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
