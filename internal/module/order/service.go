package order

import (
	"context"
	"fmt"
	"time"

	"github.com/chopshop/server/internal/module/credits"
	"github.com/chopshop/server/internal/module/pricing"
	"github.com/chopshop/server/internal/utils/random"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Quoter prices an order request. Implemented by the pricing engine.
type Quoter interface {
	Quote(ctx context.Context, accountID, itemCode string, quantity int64, modifierCodes []string) (*pricing.Quote, error)
}

// Ledger is the credit ledger surface orders need.
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount int64, reason credits.TransactionReason, referenceID string) (int64, error)
	Credit(ctx context.Context, accountID string, amount int64, reason credits.TransactionReason, referenceID string) (int64, error)
}

// UsageTracker records plan-allowance consumption. Implemented by billing.
type UsageTracker interface {
	ConsumeSeconds(ctx context.Context, accountID string, seconds int64) error
	ReleaseSeconds(ctx context.Context, accountID string, seconds int64) error
}

// Service accepts quotes into orders and owns the order-side state machine.
type Service struct {
	repo   Repository
	quoter Quoter
	ledger Ledger
	usage  UsageTracker
	log    *zap.Logger
}

// NewService creates a new order service.
func NewService(repo Repository, quoter Quoter, ledger Ledger, usage UsageTracker, log *zap.Logger) *Service {
	return &Service{repo: repo, quoter: quoter, ledger: ledger, usage: usage, log: log}
}

// Quote prices an order request without accepting it.
func (s *Service) Quote(ctx context.Context, accountID, itemCode string, quantity int64, modifierCodes []string) (*pricing.Quote, error) {
	return s.quoter.Quote(ctx, accountID, itemCode, quantity, modifierCodes)
}

// Accept re-quotes server-side, debits the ledger, and creates the order.
// No order exists without a successful debit; a failed create refunds the
// debit before returning.
func (s *Service) Accept(ctx context.Context, accountID, itemCode string, quantity int64, modifierCodes []string) (*Order, error) {
	quote, err := s.quoter.Quote(ctx, accountID, itemCode, quantity, modifierCodes)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:                uuid.New().String(),
		OrderNumber:       newOrderNumber(),
		AccountID:         accountID,
		ItemCode:          quote.ItemCode,
		Quantity:          quote.Quantity,
		AppliedModifiers:  quote.AppliedModifiers,
		PriceCents:        quote.PriceCents,
		InternalCostCents: quote.InternalCostCents,
		Margin:            quote.Margin,
		TotalSeconds:      quote.TotalSeconds,
		SecondsFromPlan:   quote.SecondsFromPlan,
		OverageSeconds:    quote.OverageSeconds,
		Status:            StatusPending,
	}

	if quote.PriceCents > 0 {
		if _, err := s.ledger.Debit(ctx, accountID, quote.PriceCents, credits.ReasonPurchase, o.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if quote.PriceCents > 0 {
			if _, refundErr := s.ledger.Credit(ctx, accountID, quote.PriceCents, credits.ReasonRefund, o.ID); refundErr != nil {
				s.log.Error("compensating refund failed after order create error",
					zap.String("order_id", o.ID),
					zap.Int64("amount_cents", quote.PriceCents),
					zap.Error(refundErr))
			}
		}
		return nil, err
	}

	if quote.SecondsFromPlan > 0 {
		// The quote priced these seconds as covered by the plan; record the
		// draw so later quotes see the reduced allowance.
		if err := s.usage.ConsumeSeconds(ctx, accountID, quote.SecondsFromPlan); err != nil {
			s.log.Error("failed to record plan usage for accepted order",
				zap.String("order_id", o.ID),
				zap.Int64("seconds", quote.SecondsFromPlan),
				zap.Error(err))
		}
	}

	s.log.Info("order accepted",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("account_id", accountID),
		zap.String("item_code", o.ItemCode),
		zap.Int64("price_cents", o.PriceCents))
	return o, nil
}

// Get returns the order, enforcing ownership.
func (s *Service) Get(ctx context.Context, accountID, orderID string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.AccountID != accountID {
		return nil, ErrNotOwner
	}
	return o, nil
}

// List returns the account's recent orders.
func (s *Service) List(ctx context.Context, accountID string, limit int) ([]*Order, error) {
	return s.repo.ListByAccount(ctx, accountID, limit)
}

// CancelPending cancels an order that has not started fulfillment and
// refunds its price. Orders already processing are cancelled through the
// job, not here.
func (s *Service) CancelPending(ctx context.Context, accountID, orderID string) error {
	o, err := s.Get(ctx, accountID, orderID)
	if err != nil {
		return err
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}

	moved, err := s.repo.UpdateStatus(ctx, orderID, []Status{StatusPending}, StatusCancelled)
	if err != nil {
		return err
	}
	if !moved {
		return ErrInvalidTransition
	}

	if o.PriceCents > 0 {
		if _, err := s.ledger.Credit(ctx, accountID, o.PriceCents, credits.ReasonRefund, orderID); err != nil {
			return fmt.Errorf("refund cancelled order: %w", err)
		}
	}
	if o.SecondsFromPlan > 0 {
		if err := s.usage.ReleaseSeconds(ctx, accountID, o.SecondsFromPlan); err != nil {
			s.log.Error("failed to release plan usage for cancelled order",
				zap.String("order_id", orderID),
				zap.Int64("seconds", o.SecondsFromPlan),
				zap.Error(err))
		}
	}

	s.log.Info("pending order cancelled",
		zap.String("order_id", orderID),
		zap.Int64("refunded_cents", o.PriceCents))
	return nil
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), random.UpperAlphaNum(5))
}
