package job

import (
	"encoding/json"
	"time"

	"github.com/chopshop/server/internal/module/provider"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// StepStatus is the per-step execution state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Job is one fulfillment attempt for an order. CreditsCharged snapshots the
// amount the ledger actually debited; the refund path pays back exactly this.
type Job struct {
	ID        string `json:"id" gorm:"primaryKey"`
	OrderID   string `json:"order_id" gorm:"uniqueIndex;not null"`
	AccountID string `json:"account_id" gorm:"not null;index"`
	ItemCode  string `json:"item_code" gorm:"not null"`

	CreditsCharged  int64           `json:"credits_charged" gorm:"not null"`
	Status          Status          `json:"status" gorm:"not null;index;default:pending"`
	ResultReference string          `json:"result_reference"`
	Error           string          `json:"error"`
	Inputs          json.RawMessage `json:"inputs" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// InputMap decodes the customer inputs. Returns an empty map on nil inputs.
func (j *Job) InputMap() map[string]interface{} {
	inputs := make(map[string]interface{})
	if len(j.Inputs) > 0 {
		_ = json.Unmarshal(j.Inputs, &inputs)
	}
	return inputs
}

// Step is one ordered unit of provider work within a job. Each row carries
// everything needed to execute it, so a restarted process can resume from
// persisted state alone.
type Step struct {
	ID    string `json:"id" gorm:"primaryKey"`
	JobID string `json:"job_id" gorm:"not null;index"`
	Index int    `json:"index" gorm:"column:step_index;not null"`
	Name  string `json:"name" gorm:"not null"`

	EndpointClass string          `json:"endpoint_class" gorm:"not null"`
	Path          string          `json:"path" gorm:"not null"`
	Method        string          `json:"method" gorm:"not null"`
	StatusPath    string          `json:"status_path"`
	CancelPath    string          `json:"cancel_path"`
	Params        json.RawMessage `json:"params" gorm:"type:jsonb"`
	Condition     json.RawMessage `json:"condition" gorm:"type:jsonb"`
	Required      bool            `json:"required" gorm:"not null;default:true"`
	TimeoutSecs   int             `json:"timeout_seconds" gorm:"not null;default:0"`

	RetryMaxAttempts   int `json:"retry_max_attempts" gorm:"not null;default:0"`
	RetryBaseDelaySecs int `json:"retry_base_delay_seconds" gorm:"not null;default:0"`

	Status         StepStatus      `json:"status" gorm:"not null;default:pending"`
	ProviderTaskID string          `json:"provider_task_id"`
	Output         json.RawMessage `json:"output" gorm:"type:jsonb"`
	Error          string          `json:"error"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName returns the table name for Step.
func (Step) TableName() string {
	return "job_steps"
}

// OutputMap decodes the step output payload.
func (s *Step) OutputMap() map[string]interface{} {
	output := make(map[string]interface{})
	if len(s.Output) > 0 {
		_ = json.Unmarshal(s.Output, &output)
	}
	return output
}

// ParseCondition decodes the step's optional condition.
func (s *Step) ParseCondition() (*Condition, error) {
	if len(s.Condition) == 0 {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal(s.Condition, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// RetryPolicy returns the step's provider retry override. Unset fields fall
// back to the client's configured defaults.
func (s *Step) RetryPolicy() provider.RetryPolicy {
	return provider.RetryPolicy{
		MaxAttempts: s.RetryMaxAttempts,
		BaseDelay:   time.Duration(s.RetryBaseDelaySecs) * time.Second,
	}
}

// ParamsMap decodes the step's parameter template.
func (s *Step) ParamsMap() map[string]interface{} {
	params := make(map[string]interface{})
	if len(s.Params) > 0 {
		_ = json.Unmarshal(s.Params, &params)
	}
	return params
}
