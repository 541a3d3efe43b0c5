package job

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chopshop/server/internal/module/provider"
)

// StepTemplate describes one step of an item's fulfillment workflow.
type StepTemplate struct {
	Name          string                 `json:"name"`
	EndpointClass provider.EndpointClass `json:"endpoint_class"`
	Path          string                 `json:"path"`
	Method        string                 `json:"method"`
	StatusPath    string                 `json:"status_path,omitempty"`
	CancelPath    string                 `json:"cancel_path,omitempty"`
	Params        map[string]interface{} `json:"params"`
	Condition     *Condition             `json:"condition,omitempty"`
	Required      bool                   `json:"required"`
	TimeoutSecs   int                    `json:"timeout_seconds,omitempty"`

	// Per-step retry overrides. Zero means the provider client defaults.
	RetryMaxAttempts   int `json:"retry_max_attempts,omitempty"`
	RetryBaseDelaySecs int `json:"retry_base_delay_seconds,omitempty"`
}

// Timeout returns the per-step call timeout.
func (t StepTemplate) Timeout() time.Duration {
	if t.TimeoutSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(t.TimeoutSecs) * time.Second
}

// Validate checks the template at the load boundary.
func (t StepTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("step template missing name")
	}
	switch t.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return fmt.Errorf("step %q: unsupported method %q", t.Name, t.Method)
	}
	if t.Path == "" {
		return fmt.Errorf("step %q: missing path", t.Name)
	}
	switch t.EndpointClass {
	case provider.ClassVideo, provider.ClassTTS, provider.ClassVoice, provider.ClassAvatar, provider.ClassStatus:
	default:
		return fmt.Errorf("step %q: unknown endpoint class %q", t.Name, t.EndpointClass)
	}
	if t.RetryMaxAttempts < 0 || t.RetryBaseDelaySecs < 0 {
		return fmt.Errorf("step %q: negative retry settings", t.Name)
	}
	return nil
}

// WorkflowTemplate is the persisted, ordered step list for one item code.
type WorkflowTemplate struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	ItemCode  string          `json:"item_code" gorm:"uniqueIndex;not null"`
	Steps     json.RawMessage `json:"steps" gorm:"type:jsonb;not null"`
	Active    bool            `json:"active" gorm:"default:true"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the table name for WorkflowTemplate.
func (WorkflowTemplate) TableName() string {
	return "workflow_templates"
}

// ParseSteps decodes and validates the template's step list.
func (w *WorkflowTemplate) ParseSteps() ([]StepTemplate, error) {
	var steps []StepTemplate
	if err := json.Unmarshal(w.Steps, &steps); err != nil {
		return nil, fmt.Errorf("decode workflow template %s: %w", w.ItemCode, err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow template %s has no steps", w.ItemCode)
	}
	for _, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("workflow template %s: %w", w.ItemCode, err)
		}
	}
	return steps, nil
}

// TemplateStore loads workflow templates by item code.
type TemplateStore interface {
	GetTemplate(ctx context.Context, itemCode string) (*WorkflowTemplate, error)
	UpsertTemplate(ctx context.Context, template *WorkflowTemplate) error
}

// BuildSteps materializes persisted Step rows for a new job from the
// template. Steps are appended in template order and never reordered.
func BuildSteps(jobID string, templates []StepTemplate, newID func() string) ([]*Step, error) {
	steps := make([]*Step, 0, len(templates))
	for i, t := range templates {
		params, err := json.Marshal(t.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal step params: %w", err)
		}
		var condition json.RawMessage
		if t.Condition != nil {
			condition, err = json.Marshal(t.Condition)
			if err != nil {
				return nil, fmt.Errorf("marshal step condition: %w", err)
			}
		}
		steps = append(steps, &Step{
			ID:                 newID(),
			JobID:              jobID,
			Index:              i,
			Name:               t.Name,
			EndpointClass:      string(t.EndpointClass),
			Path:               t.Path,
			Method:             t.Method,
			StatusPath:         t.StatusPath,
			CancelPath:         t.CancelPath,
			Params:             params,
			Condition:          condition,
			Required:           t.Required,
			TimeoutSecs:        t.TimeoutSecs,
			RetryMaxAttempts:   t.RetryMaxAttempts,
			RetryBaseDelaySecs: t.RetryBaseDelaySecs,
			Status:             StepPending,
		})
	}
	return steps, nil
}
