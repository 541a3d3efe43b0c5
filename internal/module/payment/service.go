package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chopshop/server/internal/module/billing"
	"github.com/chopshop/server/internal/module/credits"
	"github.com/chopshop/server/internal/shared/config"
	"github.com/chopshop/server/internal/shared/metrics"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// Disposition classifies what a webhook delivery did.
type Disposition string

const (
	DispositionProcessed Disposition = "processed"
	DispositionDuplicate Disposition = "duplicate"
	DispositionIgnored   Disposition = "ignored"
	DispositionError     Disposition = "error"
)

// CreditGranter is the ledger surface payments need.
type CreditGranter interface {
	EnsureAccount(ctx context.Context, accountID string) error
	Credit(ctx context.Context, accountID string, amount int64, reason credits.TransactionReason, referenceID string) (int64, error)
}

// PlanActivator is the billing surface payments need.
type PlanActivator interface {
	ActivatePlan(ctx context.Context, accountID, planCode string) (*billing.Subscription, error)
}

// Service applies payment gateway notifications exactly once. The event row
// insert is the idempotency guard; effects run only on first delivery.
type Service struct {
	repo    Repository
	credits CreditGranter
	billing PlanActivator
	cfg     config.PaymentConfig
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewService creates a new payment service.
func NewService(repo Repository, creditLedger CreditGranter, planActivator PlanActivator, cfg config.PaymentConfig, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		credits: creditLedger,
		billing: planActivator,
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

// HandleStripeEvent verifies, records, and applies one Stripe webhook
// delivery. Duplicate deliveries are acknowledged without effect.
func (s *Service) HandleStripeEvent(ctx context.Context, payload []byte, signature string) (Disposition, error) {
	event, err := s.parseEvent(payload, signature)
	if err != nil {
		s.observe(DispositionError)
		return DispositionError, err
	}

	row := &WebhookEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		Payload:   payload,
		Status:    EventReceived,
		AccountID: objectMetadata(event)["account_id"],
	}
	isNew, err := s.repo.RecordIfNew(ctx, row)
	if err != nil {
		s.observe(DispositionError)
		return DispositionError, err
	}
	if !isNew {
		s.log.Info("duplicate webhook event acknowledged",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)))
		s.observe(DispositionDuplicate)
		return DispositionDuplicate, nil
	}

	disposition, applyErr := s.apply(ctx, event)
	switch disposition {
	case DispositionProcessed:
		if err := s.repo.SetOutcome(ctx, event.ID, EventProcessed, ""); err != nil {
			s.log.Error("failed to record event outcome", zap.String("event_id", event.ID), zap.Error(err))
		}
	case DispositionIgnored:
		if err := s.repo.SetOutcome(ctx, event.ID, EventSkipped, ""); err != nil {
			s.log.Error("failed to record event outcome", zap.String("event_id", event.ID), zap.Error(err))
		}
	case DispositionError:
		if err := s.repo.SetOutcome(ctx, event.ID, EventError, applyErr.Error()); err != nil {
			s.log.Error("failed to record event outcome", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	s.observe(disposition)
	return disposition, applyErr
}

func (s *Service) parseEvent(payload []byte, signature string) (*stripe.Event, error) {
	if s.cfg.SkipSignatureCheck {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse webhook event: %w", err)
		}
		return &event, nil
	}

	event, err := webhook.ConstructEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &event, nil
}

func (s *Service) apply(ctx context.Context, event *stripe.Event) (Disposition, error) {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return DispositionError, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		if err := s.applyGrant(ctx, event.ID, session.Metadata, session.AmountTotal); err != nil {
			return DispositionError, err
		}
		return DispositionProcessed, nil

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return DispositionError, fmt.Errorf("unmarshal payment intent: %w", err)
		}
		if err := s.applyGrant(ctx, event.ID, pi.Metadata, pi.Amount); err != nil {
			return DispositionError, err
		}
		return DispositionProcessed, nil

	default:
		s.log.Debug("unhandled webhook event type", zap.String("type", string(event.Type)))
		return DispositionIgnored, nil
	}
}

// applyGrant turns a paid event into its effect: a plan activation when the
// metadata names a plan, otherwise a credit grant for the paid amount.
func (s *Service) applyGrant(ctx context.Context, eventID string, metadata map[string]string, amountCents int64) error {
	accountID := metadata["account_id"]
	if accountID == "" {
		return ErrMissingAccount
	}

	if planCode := metadata["plan_code"]; planCode != "" {
		if _, err := s.billing.ActivatePlan(ctx, accountID, planCode); err != nil {
			return fmt.Errorf("activate plan %s: %w", planCode, err)
		}
		s.log.Info("plan activated from payment",
			zap.String("event_id", eventID),
			zap.String("account_id", accountID),
			zap.String("plan_code", planCode))
		return nil
	}

	grant := amountCents
	if raw := metadata["credit_cents"]; raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse credit_cents %q: %w", raw, err)
		}
		grant = parsed
	}
	if grant <= 0 {
		return fmt.Errorf("event %s carries no grantable amount", eventID)
	}

	if err := s.credits.EnsureAccount(ctx, accountID); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	newBalance, err := s.credits.Credit(ctx, accountID, grant, credits.ReasonPaymentGrant, eventID)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	s.log.Info("credits granted from payment",
		zap.String("event_id", eventID),
		zap.String("account_id", accountID),
		zap.Int64("amount_cents", grant),
		zap.Int64("new_balance_cents", newBalance))
	return nil
}

// objectMetadata pulls the metadata map off the event object, tolerating
// event types that carry none.
func objectMetadata(event *stripe.Event) map[string]string {
	out := make(map[string]string)
	raw, ok := event.Data.Object["metadata"].(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (s *Service) observe(d Disposition) {
	if s.metrics != nil {
		s.metrics.PaymentEvents.WithLabelValues(string(d)).Inc()
	}
}
