package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chopshop/server/internal/module/order"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the order surface fulfillment needs.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// Service starts fulfillment jobs and exposes their status.
type Service struct {
	repo         Repository
	orders       OrderStore
	orchestrator *Orchestrator
	client       ProviderClient
	log          *zap.Logger
}

// NewService creates a new job service.
func NewService(repo Repository, orders OrderStore, orchestrator *Orchestrator, client ProviderClient, log *zap.Logger) *Service {
	return &Service{repo: repo, orders: orders, orchestrator: orchestrator, client: client, log: log}
}

// StartFulfillment creates the job and its steps from the item's workflow
// template and hands it to the orchestrator. The order must be pending and
// owned by the account; its debited price becomes the job's refundable
// snapshot.
func (s *Service) StartFulfillment(ctx context.Context, accountID, orderID string, inputs map[string]interface{}) (*Job, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.AccountID != accountID {
		return nil, ErrNotOwner
	}
	if o.Status != order.StatusPending {
		return nil, ErrOrderNotFulfillable
	}

	if existing, err := s.repo.GetJobByOrder(ctx, orderID); err == nil {
		// Fulfillment already started; hand back the existing job.
		return existing, nil
	}

	template, err := s.repo.GetTemplate(ctx, o.ItemCode)
	if err != nil {
		return nil, err
	}
	stepTemplates, err := template.ParseSteps()
	if err != nil {
		return nil, err
	}

	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal inputs: %w", err)
	}

	j := &Job{
		ID:             uuid.New().String(),
		OrderID:        o.ID,
		AccountID:      accountID,
		ItemCode:       o.ItemCode,
		CreditsCharged: o.PriceCents,
		Status:         StatusPending,
		Inputs:         inputsJSON,
	}
	steps, err := BuildSteps(j.ID, stepTemplates, func() string { return uuid.New().String() })
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateJobWithSteps(ctx, j, steps); err != nil {
		return nil, err
	}

	s.orchestrator.Dispatch(j)
	s.log.Info("fulfillment started",
		zap.String("job_id", j.ID),
		zap.String("order_id", orderID),
		zap.String("item_code", o.ItemCode),
		zap.Int("steps", len(steps)))
	return j, nil
}

// GetStatus returns the job with its ordered step detail.
func (s *Service) GetStatus(ctx context.Context, accountID, jobID string) (*Job, []*Step, error) {
	j, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if j.AccountID != accountID {
		return nil, nil, ErrNotOwner
	}
	steps, err := s.repo.GetSteps(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return j, steps, nil
}

// Cancel stops a non-terminal job: the terminal transition and refund run
// first (at most once), then in-process polling is cancelled and the
// provider is asked, best effort, to stop in-flight tasks.
func (s *Service) Cancel(ctx context.Context, accountID, jobID string) error {
	j, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.AccountID != accountID {
		return ErrNotOwner
	}

	moved, err := s.repo.CancelWithRefund(ctx, jobID)
	if err != nil {
		return err
	}
	if !moved {
		return ErrAlreadyTerminal
	}

	s.orchestrator.CancelRunning(jobID)

	steps, err := s.repo.GetSteps(ctx, jobID)
	if err == nil {
		for _, step := range steps {
			if step.Status == StepProcessing && step.ProviderTaskID != "" && step.CancelPath != "" {
				if cancelErr := s.client.CancelTask(ctx, step.CancelPath, step.ProviderTaskID); cancelErr != nil {
					s.log.Warn("provider task cancel failed",
						zap.String("job_id", jobID),
						zap.String("task_id", step.ProviderTaskID),
						zap.Error(cancelErr))
				}
			}
		}
	}

	s.log.Info("job cancelled",
		zap.String("job_id", jobID),
		zap.Int64("refunded_cents", j.CreditsCharged))
	return nil
}
