package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for ledger data access.
type Repository interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error

	// Credit adds amount to the balance and journals the movement.
	Credit(ctx context.Context, accountID string, amount int64, reason TransactionReason, referenceID string) (int64, error)
	// Debit atomically subtracts amount when the balance covers it.
	// Returns ErrInsufficientCredits otherwise.
	Debit(ctx context.Context, accountID string, amount int64, reason TransactionReason, referenceID string) (int64, error)

	ListTransactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *Account) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(account).Error
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *repository) Credit(ctx context.Context, accountID string, amount int64, reason TransactionReason, referenceID string) (int64, error) {
	var newBalance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Account{}).
			Where("id = ?", accountID).
			Update("balance_cents", gorm.Expr("balance_cents + ?", amount))
		if result.Error != nil {
			return fmt.Errorf("credit balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}

		var account Account
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		newBalance = account.BalanceCents

		return tx.Create(&Transaction{
			ID:           uuid.New().String(),
			AccountID:    accountID,
			DeltaCents:   amount,
			BalanceAfter: newBalance,
			Reason:       reason,
			ReferenceID:  referenceID,
			CreatedAt:    time.Now(),
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *repository) Debit(ctx context.Context, accountID string, amount int64, reason TransactionReason, referenceID string) (int64, error) {
	var newBalance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Single conditional update keeps concurrent debits linearizable:
		// only one can win when the balance covers just one of them.
		result := tx.Model(&Account{}).
			Where("id = ? AND balance_cents >= ?", accountID, amount).
			Update("balance_cents", gorm.Expr("balance_cents - ?", amount))
		if result.Error != nil {
			return fmt.Errorf("debit balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var account Account
			if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return fmt.Errorf("check account: %w", err)
			}
			return ErrInsufficientCredits
		}

		var account Account
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		newBalance = account.BalanceCents

		return tx.Create(&Transaction{
			ID:           uuid.New().String(),
			AccountID:    accountID,
			DeltaCents:   -amount,
			BalanceAfter: newBalance,
			Reason:       reason,
			ReferenceID:  referenceID,
			CreatedAt:    time.Now(),
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *repository) ListTransactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var transactions []*Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}
