package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chopshop/server/internal/module/credits"
	"github.com/chopshop/server/internal/module/order"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for job data access. Terminal transitions
// are conditional updates so they fire at most once; the refunding variants
// run the ledger movement in the same transaction, making the refund visible
// no later than the terminal status.
type Repository interface {
	CreateJobWithSteps(ctx context.Context, j *Job, steps []*Step) error
	GetJob(ctx context.Context, id string) (*Job, error)
	GetJobByOrder(ctx context.Context, orderID string) (*Job, error)
	GetSteps(ctx context.Context, jobID string) ([]*Step, error)
	ListNonTerminal(ctx context.Context) ([]*Job, error)

	// MarkProcessing moves pending -> processing on job and order.
	MarkProcessing(ctx context.Context, jobID string) (bool, error)
	// Complete moves a non-terminal job to completed with its result.
	Complete(ctx context.Context, jobID, resultReference string) (bool, error)
	// FailWithRefund moves a non-terminal job to failed, refunds
	// CreditsCharged, and fails the order, all atomically. Returns false when
	// the job was already terminal (no refund happens).
	FailWithRefund(ctx context.Context, jobID, errMsg string) (bool, error)
	// CancelWithRefund is FailWithRefund with cancelled status.
	CancelWithRefund(ctx context.Context, jobID string) (bool, error)

	StartStep(ctx context.Context, stepID, providerTaskID string) error
	CompleteStep(ctx context.Context, stepID string, output json.RawMessage) error
	FailStep(ctx context.Context, stepID, errMsg string) error
	SkipStep(ctx context.Context, stepID string) error

	GetTemplate(ctx context.Context, itemCode string) (*WorkflowTemplate, error)
	UpsertTemplate(ctx context.Context, template *WorkflowTemplate) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new job repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateJobWithSteps(ctx context.Context, j *Job, steps []*Step) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(j).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return fmt.Errorf("create job steps: %w", err)
			}
		}
		return nil
	})
}

func (r *repository) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (r *repository) GetJobByOrder(ctx context.Context, orderID string) (*Job, error) {
	var j Job
	err := r.db.WithContext(ctx).First(&j, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job by order: %w", err)
	}
	return &j, nil
}

func (r *repository) GetSteps(ctx context.Context, jobID string) ([]*Step, error) {
	var steps []*Step
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("step_index ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("get job steps: %w", err)
	}
	return steps, nil
}

func (r *repository) ListNonTerminal(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	err := r.db.WithContext(ctx).
		Where("status IN ?", []Status{StatusPending, StatusProcessing}).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list non-terminal jobs: %w", err)
	}
	return jobs, nil
}

func (r *repository) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Job{}).
			Where("id = ? AND status IN ?", jobID, []Status{StatusPending, StatusProcessing}).
			Update("status", StatusProcessing)
		if result.Error != nil {
			return fmt.Errorf("mark job processing: %w", result.Error)
		}
		moved = result.RowsAffected > 0
		if !moved {
			return nil
		}

		var j Job
		if err := tx.First(&j, "id = ?", jobID).Error; err != nil {
			return fmt.Errorf("reload job: %w", err)
		}
		return tx.Model(&order.Order{}).
			Where("id = ? AND status = ?", j.OrderID, order.StatusPending).
			Update("status", order.StatusProcessing).Error
	})
	return moved, err
}

func (r *repository) Complete(ctx context.Context, jobID, resultReference string) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Job{}).
			Where("id = ? AND status IN ?", jobID, []Status{StatusPending, StatusProcessing}).
			Updates(map[string]interface{}{
				"status":           StatusCompleted,
				"result_reference": resultReference,
			})
		if result.Error != nil {
			return fmt.Errorf("complete job: %w", result.Error)
		}
		moved = result.RowsAffected > 0
		if !moved {
			return nil
		}

		var j Job
		if err := tx.First(&j, "id = ?", jobID).Error; err != nil {
			return fmt.Errorf("reload job: %w", err)
		}
		return tx.Model(&order.Order{}).
			Where("id = ? AND status IN ?", j.OrderID, []order.Status{order.StatusPending, order.StatusProcessing}).
			Update("status", order.StatusCompleted).Error
	})
	return moved, err
}

func (r *repository) FailWithRefund(ctx context.Context, jobID, errMsg string) (bool, error) {
	return r.terminateWithRefund(ctx, jobID, StatusFailed, order.StatusFailed, errMsg)
}

func (r *repository) CancelWithRefund(ctx context.Context, jobID string) (bool, error) {
	return r.terminateWithRefund(ctx, jobID, StatusCancelled, order.StatusCancelled, "cancelled by user")
}

// terminateWithRefund is the single refund path. The conditional job update
// guards against double refunds; the ledger movement shares the transaction
// so a reader observing the terminal status also observes the refund.
func (r *repository) terminateWithRefund(ctx context.Context, jobID string, jobStatus Status, orderStatus order.Status, errMsg string) (bool, error) {
	var moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.First(&j, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return fmt.Errorf("load job: %w", err)
		}

		result := tx.Model(&Job{}).
			Where("id = ? AND status IN ?", jobID, []Status{StatusPending, StatusProcessing}).
			Updates(map[string]interface{}{
				"status": jobStatus,
				"error":  errMsg,
			})
		if result.Error != nil {
			return fmt.Errorf("terminate job: %w", result.Error)
		}
		moved = result.RowsAffected > 0
		if !moved {
			return nil
		}

		if j.CreditsCharged > 0 {
			refund := tx.Model(&credits.Account{}).
				Where("id = ?", j.AccountID).
				Update("balance_cents", gorm.Expr("balance_cents + ?", j.CreditsCharged))
			if refund.Error != nil {
				return fmt.Errorf("refund credits: %w", refund.Error)
			}

			var account credits.Account
			if err := tx.First(&account, "id = ?", j.AccountID).Error; err != nil {
				return fmt.Errorf("reload account: %w", err)
			}
			journal := &credits.Transaction{
				ID:           uuid.New().String(),
				AccountID:    j.AccountID,
				DeltaCents:   j.CreditsCharged,
				BalanceAfter: account.BalanceCents,
				Reason:       credits.ReasonRefund,
				ReferenceID:  jobID,
				CreatedAt:    time.Now(),
			}
			if err := tx.Create(journal).Error; err != nil {
				return fmt.Errorf("journal refund: %w", err)
			}
		}

		return tx.Model(&order.Order{}).
			Where("id = ? AND status IN ?", j.OrderID, []order.Status{order.StatusPending, order.StatusProcessing}).
			Update("status", orderStatus).Error
	})
	return moved, err
}

func (r *repository) StartStep(ctx context.Context, stepID, providerTaskID string) error {
	err := r.db.WithContext(ctx).
		Model(&Step{}).
		Where("id = ?", stepID).
		Updates(map[string]interface{}{
			"status":           StepProcessing,
			"provider_task_id": providerTaskID,
		}).Error
	if err != nil {
		return fmt.Errorf("start step: %w", err)
	}
	return nil
}

func (r *repository) CompleteStep(ctx context.Context, stepID string, output json.RawMessage) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&Step{}).
		Where("id = ?", stepID).
		Updates(map[string]interface{}{
			"status":       StepCompleted,
			"output":       output,
			"completed_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("complete step: %w", err)
	}
	return nil
}

func (r *repository) FailStep(ctx context.Context, stepID, errMsg string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&Step{}).
		Where("id = ?", stepID).
		Updates(map[string]interface{}{
			"status":       StepFailed,
			"error":        errMsg,
			"completed_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("fail step: %w", err)
	}
	return nil
}

func (r *repository) SkipStep(ctx context.Context, stepID string) error {
	err := r.db.WithContext(ctx).
		Model(&Step{}).
		Where("id = ?", stepID).
		Update("status", StepSkipped).Error
	if err != nil {
		return fmt.Errorf("skip step: %w", err)
	}
	return nil
}

func (r *repository) GetTemplate(ctx context.Context, itemCode string) (*WorkflowTemplate, error) {
	var template WorkflowTemplate
	err := r.db.WithContext(ctx).First(&template, "item_code = ? AND active = ?", itemCode, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get workflow template: %w", err)
	}
	return &template, nil
}

func (r *repository) UpsertTemplate(ctx context.Context, template *WorkflowTemplate) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"steps", "active", "updated_at"}),
		}).
		Create(template).Error
	if err != nil {
		return fmt.Errorf("upsert workflow template: %w", err)
	}
	return nil
}
