package credits

import (
	"context"

	"go.uber.org/zap"
)

// Service is the credit ledger. All balance movements go through it.
type Service struct {
	repo Repository
	log  *zap.Logger
}

// NewService creates a new ledger service.
func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetBalance returns the account's current balance in cents.
func (s *Service) GetBalance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.BalanceCents, nil
}

// EnsureAccount creates the account row if it does not exist yet.
func (s *Service) EnsureAccount(ctx context.Context, accountID string) error {
	return s.repo.CreateAccount(ctx, &Account{ID: accountID})
}

// Credit adds amount to the account and returns the new balance.
func (s *Service) Credit(ctx context.Context, accountID string, amount int64, reason TransactionReason, referenceID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.repo.Credit(ctx, accountID, amount, reason, referenceID)
	if err != nil {
		return 0, err
	}
	s.log.Info("credits added",
		zap.String("account_id", accountID),
		zap.Int64("amount_cents", amount),
		zap.String("reason", string(reason)),
		zap.Int64("new_balance_cents", newBalance))
	return newBalance, nil
}

// Debit subtracts amount from the account, failing closed when the balance
// does not cover it. Returns the new balance.
func (s *Service) Debit(ctx context.Context, accountID string, amount int64, reason TransactionReason, referenceID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.repo.Debit(ctx, accountID, amount, reason, referenceID)
	if err != nil {
		return 0, err
	}
	s.log.Info("credits debited",
		zap.String("account_id", accountID),
		zap.Int64("amount_cents", amount),
		zap.String("reason", string(reason)),
		zap.Int64("new_balance_cents", newBalance))
	return newBalance, nil
}

// ListTransactions returns recent journal entries for the account.
func (s *Service) ListTransactions(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, accountID, limit)
}
