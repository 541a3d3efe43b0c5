package billing

import (
	"context"
	"errors"
	"time"

	"github.com/chopshop/server/internal/module/catalog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanStore is the catalog surface billing needs.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (*catalog.Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*catalog.Plan, error)
}

// Allowance is the current-period view of an account's plan.
type Allowance struct {
	Subscription     *Subscription
	Plan             *catalog.Plan
	Period           *UsagePeriod
	RemainingSeconds int64
}

// Service tracks plan subscriptions and per-period usage.
type Service struct {
	repo  Repository
	plans PlanStore
	log   *zap.Logger

	now func() time.Time
}

// NewService creates a new billing service.
func NewService(repo Repository, plans PlanStore, log *zap.Logger) *Service {
	return &Service{repo: repo, plans: plans, log: log, now: time.Now}
}

// ActiveSubscription returns the account's active subscription and its plan.
func (s *Service) ActiveSubscription(ctx context.Context, accountID string) (*Subscription, *catalog.Plan, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, accountID, s.now().UTC())
	if err != nil {
		return nil, nil, err
	}
	plan, err := s.plans.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return sub, plan, nil
}

// CurrentAllowance returns the account's remaining plan allowance for the
// current period, lazily creating the period row. Returns
// ErrNoActiveSubscription when the account has no plan.
func (s *Service) CurrentAllowance(ctx context.Context, accountID string) (*Allowance, error) {
	sub, plan, err := s.ActiveSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}

	start, end := CurrentPeriodBounds(s.now())
	period, err := s.repo.GetOrCreateUsagePeriod(ctx, accountID, sub.PlanID, start, end)
	if err != nil {
		return nil, err
	}

	remaining := plan.IncludedSeconds - period.SecondsUsed
	if remaining < 0 {
		remaining = 0
	}
	return &Allowance{
		Subscription:     sub,
		Plan:             plan,
		Period:           period,
		RemainingSeconds: remaining,
	}, nil
}

// ConsumeSeconds records seconds drawn from the plan allowance for the
// current period.
func (s *Service) ConsumeSeconds(ctx context.Context, accountID string, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	allowance, err := s.CurrentAllowance(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.repo.AddSecondsUsed(ctx, allowance.Period.ID, seconds); err != nil {
		return err
	}
	s.log.Info("plan seconds consumed",
		zap.String("account_id", accountID),
		zap.Int64("seconds", seconds),
		zap.String("plan_id", allowance.Plan.ID))
	return nil
}

// ReleaseSeconds returns seconds to the current period after a cancelled
// order. A no-op when the account no longer has a plan; never drives the
// counter below zero.
func (s *Service) ReleaseSeconds(ctx context.Context, accountID string, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	allowance, err := s.CurrentAllowance(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			return nil
		}
		return err
	}
	if err := s.repo.AddSecondsUsed(ctx, allowance.Period.ID, -seconds); err != nil {
		return err
	}
	s.log.Info("plan seconds released",
		zap.String("account_id", accountID),
		zap.Int64("seconds", seconds),
		zap.String("plan_id", allowance.Plan.ID))
	return nil
}

// ActivatePlan subscribes the account to the plan with the given code,
// replacing any existing active subscription.
func (s *Service) ActivatePlan(ctx context.Context, accountID, planCode string) (*Subscription, error) {
	plan, err := s.plans.GetPlanByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.repo.GetActiveSubscription(ctx, accountID, now)
	if err != nil && !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}
	if existing != nil {
		if err := s.repo.UpdateSubscriptionStatus(ctx, existing.ID, SubscriptionCancelled, &now); err != nil {
			return nil, err
		}
		s.log.Info("replacing subscription",
			zap.String("account_id", accountID),
			zap.String("old_plan_id", existing.PlanID),
			zap.String("new_plan_id", plan.ID))
	}

	sub := &Subscription{
		ID:        uuid.New().String(),
		AccountID: accountID,
		PlanID:    plan.ID,
		Status:    SubscriptionActive,
		StartDate: now,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info("plan activated",
		zap.String("account_id", accountID),
		zap.String("plan_code", planCode))
	return sub, nil
}

// CancelSubscription ends the account's active subscription.
func (s *Service) CancelSubscription(ctx context.Context, accountID string) error {
	now := s.now().UTC()
	sub, err := s.repo.GetActiveSubscription(ctx, accountID, now)
	if err != nil {
		return err
	}
	return s.repo.UpdateSubscriptionStatus(ctx, sub.ID, SubscriptionCancelled, &now)
}
