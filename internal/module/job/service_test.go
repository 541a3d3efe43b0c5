package job

import (
	"context"
	"testing"

	"github.com/chopshop/server/internal/module/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOrderStore struct {
	orders map[string]*order.Order
}

func (s *stubOrderStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func newTestService(t *testing.T, repo *memoryRepository, client *scriptedClient, orders ...*order.Order) (*Service, *Orchestrator) {
	t.Helper()
	store := &stubOrderStore{orders: make(map[string]*order.Order)}
	for _, o := range orders {
		store.orders[o.ID] = o
	}
	orch := newTestOrchestrator(repo, client)
	return NewService(repo, store, orch, client, zap.NewNop()), orch
}

func pendingOrder() *order.Order {
	return &order.Order{
		ID:         "order-1",
		AccountID:  "acc-1",
		ItemCode:   "C1-15",
		Status:     order.StatusPending,
		PriceCents: 12500,
	}
}

func TestService_StartFulfillment_CreatesJobFromTemplate(t *testing.T) {
	repo := newMemoryRepository()
	require.NoError(t, SeedTemplates(context.Background(), repo, zap.NewNop()))
	client := &scriptedClient{}
	svc, orch := newTestService(t, repo, client, pendingOrder())

	j, err := svc.StartFulfillment(context.Background(), "acc-1", "order-1", map[string]interface{}{"use_tts": false})
	require.NoError(t, err)
	orch.Stop()

	assert.Equal(t, "order-1", j.OrderID)
	assert.Equal(t, int64(12500), j.CreditsCharged)

	steps, err := repo.GetSteps(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "generate_voiceover", steps[0].Name)
	assert.Equal(t, "generate_video", steps[1].Name)
}

func TestService_StartFulfillment_IsIdempotentPerOrder(t *testing.T) {
	repo := newMemoryRepository()
	require.NoError(t, SeedTemplates(context.Background(), repo, zap.NewNop()))
	client := &scriptedClient{}
	svc, orch := newTestService(t, repo, client, pendingOrder())

	first, err := svc.StartFulfillment(context.Background(), "acc-1", "order-1", nil)
	require.NoError(t, err)

	second, err := svc.StartFulfillment(context.Background(), "acc-1", "order-1", nil)
	require.NoError(t, err)
	orch.Stop()

	assert.Equal(t, first.ID, second.ID)
}

func TestService_StartFulfillment_Guards(t *testing.T) {
	repo := newMemoryRepository()
	require.NoError(t, SeedTemplates(context.Background(), repo, zap.NewNop()))
	client := &scriptedClient{}

	completed := pendingOrder()
	completed.ID = "order-2"
	completed.Status = order.StatusCompleted

	noWorkflow := pendingOrder()
	noWorkflow.ID = "order-3"
	noWorkflow.ItemCode = "E1-TEAM5"

	svc, _ := newTestService(t, repo, client, pendingOrder(), completed, noWorkflow)

	_, err := svc.StartFulfillment(context.Background(), "acc-1", "missing", nil)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = svc.StartFulfillment(context.Background(), "other-account", "order-1", nil)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.StartFulfillment(context.Background(), "acc-1", "order-2", nil)
	assert.ErrorIs(t, err, ErrOrderNotFulfillable)

	_, err = svc.StartFulfillment(context.Background(), "acc-1", "order-3", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestService_Cancel_RefundsOnceAndStopsProviderTask(t *testing.T) {
	repo := newMemoryRepository()
	client := &scriptedClient{}
	svc, _ := newTestService(t, repo, client)

	j := &Job{
		ID: "job-1", OrderID: "order-1", AccountID: "acc-1",
		ItemCode: "C1-15", CreditsCharged: 12500, Status: StatusProcessing,
	}
	steps := []*Step{{
		ID: "s0", JobID: "job-1", Index: 0, Name: "generate_video",
		EndpointClass: "video", Path: "/api/v1/video/generate", Method: "POST",
		StatusPath: "/api/v1/video/awsResult", CancelPath: "/api/v1/video/cancel",
		Status: StepProcessing, ProviderTaskID: "task-7",
	}}
	require.NoError(t, repo.CreateJobWithSteps(context.Background(), j, steps))

	require.NoError(t, svc.Cancel(context.Background(), "acc-1", "job-1"))

	got := repo.job(t, "job-1")
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 1, repo.refundCount())
	assert.Equal(t, []string{"task-7"}, client.cancelled)

	err := svc.Cancel(context.Background(), "acc-1", "job-1")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	assert.Equal(t, 1, repo.refundCount())
}

func TestService_Cancel_OwnershipEnforced(t *testing.T) {
	repo := newMemoryRepository()
	client := &scriptedClient{}
	svc, _ := newTestService(t, repo, client)

	j := &Job{ID: "job-1", OrderID: "order-1", AccountID: "acc-1", Status: StatusProcessing}
	require.NoError(t, repo.CreateJobWithSteps(context.Background(), j, nil))

	err := svc.Cancel(context.Background(), "other-account", "job-1")
	assert.ErrorIs(t, err, ErrNotOwner)
}
