package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/chopshop/server/internal/module/billing"
	"github.com/chopshop/server/internal/module/credits"
	"github.com/chopshop/server/internal/shared/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEventRepo struct {
	mu     sync.Mutex
	events map[string]*WebhookEvent
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*WebhookEvent)}
}

func (m *mockEventRepo) RecordIfNew(_ context.Context, event *WebhookEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return false, nil
	}
	copied := *event
	m.events[event.ID] = &copied
	return true, nil
}

func (m *mockEventRepo) SetOutcome(_ context.Context, eventID string, status EventStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	event.Status = status
	event.Error = errMsg
	return nil
}

func (m *mockEventRepo) GetEvent(_ context.Context, eventID string) (*WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	copied := *event
	return &copied, nil
}

type grantCall struct {
	accountID   string
	amount      int64
	reason      credits.TransactionReason
	referenceID string
}

type mockGranter struct {
	mu     sync.Mutex
	grants []grantCall
}

func (m *mockGranter) EnsureAccount(_ context.Context, _ string) error {
	return nil
}

func (m *mockGranter) Credit(_ context.Context, accountID string, amount int64, reason credits.TransactionReason, referenceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, grantCall{accountID, amount, reason, referenceID})
	return amount, nil
}

type mockActivator struct {
	mu          sync.Mutex
	activations []string
}

func (m *mockActivator) ActivatePlan(_ context.Context, accountID, planCode string) (*billing.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations = append(m.activations, accountID+":"+planCode)
	return &billing.Subscription{AccountID: accountID}, nil
}

func newTestPaymentService(cfg config.PaymentConfig) (*Service, *mockEventRepo, *mockGranter, *mockActivator) {
	repo := newMockEventRepo()
	granter := &mockGranter{}
	activator := &mockActivator{}
	svc := NewService(repo, granter, activator, cfg, nil, zap.NewNop())
	return svc, repo, granter, activator
}

func checkoutPayload(eventID string, metadata string, amountTotal int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "amount_total": %d, "metadata": %s}}
	}`, eventID, amountTotal, metadata))
}

func TestService_CheckoutCompleted_GrantsCreditsExactlyOnce(t *testing.T) {
	svc, repo, granter, _ := newTestPaymentService(config.PaymentConfig{SkipSignatureCheck: true})
	payload := checkoutPayload("evt_1", `{"account_id": "acc-1"}`, 1999)

	disposition, err := svc.HandleStripeEvent(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, DispositionProcessed, disposition)

	require.Len(t, granter.grants, 1)
	assert.Equal(t, grantCall{"acc-1", 1999, credits.ReasonPaymentGrant, "evt_1"}, granter.grants[0])

	event, err := repo.GetEvent(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, EventProcessed, event.Status)

	// Gateway redelivery: acknowledged, no second grant.
	disposition, err = svc.HandleStripeEvent(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, DispositionDuplicate, disposition)
	assert.Len(t, granter.grants, 1)
}

func TestService_PlanCodeMetadataActivatesPlan(t *testing.T) {
	svc, _, granter, activator := newTestPaymentService(config.PaymentConfig{SkipSignatureCheck: true})
	payload := checkoutPayload("evt_2", `{"account_id": "acc-1", "plan_code": "PRO"}`, 7999)

	disposition, err := svc.HandleStripeEvent(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, DispositionProcessed, disposition)

	assert.Equal(t, []string{"acc-1:PRO"}, activator.activations)
	assert.Empty(t, granter.grants)
}

func TestService_CreditCentsMetadataOverridesAmount(t *testing.T) {
	svc, _, granter, _ := newTestPaymentService(config.PaymentConfig{SkipSignatureCheck: true})
	payload := checkoutPayload("evt_3", `{"account_id": "acc-1", "credit_cents": "5000"}`, 1999)

	_, err := svc.HandleStripeEvent(context.Background(), payload, "")
	require.NoError(t, err)

	require.Len(t, granter.grants, 1)
	assert.Equal(t, int64(5000), granter.grants[0].amount)
}

func TestService_PaymentIntentSucceeded_GrantsAmount(t *testing.T) {
	svc, _, granter, _ := newTestPaymentService(config.PaymentConfig{SkipSignatureCheck: true})
	payload := []byte(`{
		"id": "evt_4",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 2500, "metadata": {"account_id": "acc-2"}}}
	}`)

	disposition, err := svc.HandleStripeEvent(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, DispositionProcessed, disposition)

	require.Len(t, granter.grants, 1)
	assert.Equal(t, grantCall{"acc-2", 2500, credits.ReasonPaymentGrant, "evt_4"}, granter.grants[0])
}

func TestService_UnhandledEventTypeIgnored(t *testing.T) {
	svc, repo, granter, activator := newTestPaymentService(config.PaymentConfig{SkipSignatureCheck: true})
	payload := []byte(`{
		"id": "evt_5",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_1"}}
	}`)

	disposition, err := svc.HandleStripeEvent(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, DispositionIgnored, disposition)
	assert.Empty(t, granter.grants)
	assert.Empty(t, activator.activations)

	event, err := repo.GetEvent(context.Background(), "evt_5")
	require.NoError(t, err)
	assert.Equal(t, EventSkipped, event.Status)
}

func TestService_MissingAccountRecordsError(t *testing.T) {
	svc, repo, granter, _ := newTestPaymentService(config.PaymentConfig{SkipSignatureCheck: true})
	payload := checkoutPayload("evt_6", `{}`, 1999)

	disposition, err := svc.HandleStripeEvent(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrMissingAccount)
	assert.Equal(t, DispositionError, disposition)
	assert.Empty(t, granter.grants)

	event, getErr := repo.GetEvent(context.Background(), "evt_6")
	require.NoError(t, getErr)
	assert.Equal(t, EventError, event.Status)
	assert.NotEmpty(t, event.Error)
}

func TestService_SignatureVerificationRejectsTamperedPayload(t *testing.T) {
	svc, _, granter, _ := newTestPaymentService(config.PaymentConfig{
		StripeWebhookSecret: "whsec_test",
	})
	payload := checkoutPayload("evt_7", `{"account_id": "acc-1"}`, 1999)

	_, err := svc.HandleStripeEvent(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, granter.grants)
}
