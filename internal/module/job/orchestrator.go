package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chopshop/server/internal/module/provider"
	"github.com/chopshop/server/internal/shared/config"
	"github.com/chopshop/server/internal/shared/metrics"
	"go.uber.org/zap"
)

// resultFields are scanned, in order, for a step's output reference.
var resultFields = []string{"result_url", "video_url", "audio_url", "media_url", "result"}

// ProviderClient is the provider surface the orchestrator needs.
type ProviderClient interface {
	Call(ctx context.Context, class provider.EndpointClass, method, path string, payload map[string]interface{}, retry provider.RetryPolicy) (*provider.Response, error)
	PollStatus(ctx context.Context, path, taskID string) (*provider.Response, error)
	CancelTask(ctx context.Context, path, taskID string) error
}

// Orchestrator executes job step sequences against the provider. One
// goroutine per job, bounded by a semaphore; steps within a job run strictly
// in order.
type Orchestrator struct {
	repo    Repository
	client  ProviderClient
	cfg     config.WorkerConfig
	metrics *metrics.Metrics
	log     *zap.Logger

	sem    chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewOrchestrator creates a job orchestrator.
func NewOrchestrator(repo Repository, client ProviderClient, cfg config.WorkerConfig, m *metrics.Metrics, log *zap.Logger) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 180
	}
	return &Orchestrator{
		repo:    repo,
		client:  client,
		cfg:     cfg,
		metrics: m,
		log:     log,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		stopCh:  make(chan struct{}),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start scans for non-terminal jobs and resumes them, so a process restart
// cannot orphan in-flight work.
func (o *Orchestrator) Start(ctx context.Context) error {
	jobs, err := o.repo.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("recovery scan: %w", err)
	}
	for _, j := range jobs {
		o.log.Info("resuming job after restart",
			zap.String("job_id", j.ID),
			zap.String("status", string(j.Status)))
		o.Dispatch(j)
	}
	o.log.Info("orchestrator started",
		zap.Int("max_concurrent", o.cfg.MaxConcurrent),
		zap.Int("resumed", len(jobs)))
	return nil
}

// Stop waits for in-flight step work to reach a safe point. Jobs left
// non-terminal are picked up by the next start's recovery scan.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	o.wg.Wait()
}

// Dispatch schedules the job for execution on its own goroutine.
func (o *Orchestrator) Dispatch(j *Job) {
	jobCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[j.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.cancels, j.ID)
			o.mu.Unlock()
		}()

		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-jobCtx.Done():
			return
		case <-o.stopCh:
			return
		}

		if o.metrics != nil {
			o.metrics.JobsInFlight.Inc()
			defer o.metrics.JobsInFlight.Dec()
		}
		o.execute(jobCtx, j.ID)
	}()
}

// CancelRunning cancels the in-process context for a job, stopping further
// polling and retries. The caller is responsible for the status transition
// and refund.
func (o *Orchestrator) CancelRunning(jobID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func (o *Orchestrator) execute(ctx context.Context, jobID string) {
	moved, err := o.repo.MarkProcessing(ctx, jobID)
	if err != nil {
		o.log.Error("failed to mark job processing", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if !moved {
		// Already terminal, e.g. cancelled between dispatch and start.
		return
	}

	j, err := o.repo.GetJob(ctx, jobID)
	if err != nil {
		o.log.Error("failed to load job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	steps, err := o.repo.GetSteps(ctx, jobID)
	if err != nil {
		o.fail(ctx, jobID, fmt.Sprintf("load steps: %v", err))
		return
	}

	stepCtx := j.InputMap()

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		default:
		}

		switch step.Status {
		case StepCompleted:
			// Resumed job: keep prior output in context.
			stepCtx[contextKey(step.Index)] = step.OutputMap()
			continue
		case StepSkipped:
			continue
		}

		output, failErr := o.executeStep(ctx, j, step, stepCtx)
		if failErr != nil {
			if errors.Is(failErr, context.Canceled) {
				return
			}
			o.observeStep("failed")
			if step.Required {
				o.fail(ctx, jobID, fmt.Sprintf("required step %s failed: %v", step.Name, failErr))
				return
			}
			o.log.Warn("optional step failed, continuing",
				zap.String("job_id", jobID),
				zap.String("step", step.Name),
				zap.Error(failErr))
			continue
		}
		if output != nil {
			stepCtx[contextKey(step.Index)] = output
			o.observeStep("completed")
		} else {
			o.observeStep("skipped")
		}
	}

	// Result reference: last completed step's reference, scanning backward.
	resultRef := ""
	for i := len(steps) - 1; i >= 0 && resultRef == ""; i-- {
		if outputs, ok := stepCtx[contextKey(steps[i].Index)].(map[string]interface{}); ok {
			resultRef = extractResultReference(outputs)
		}
	}

	if resultRef == "" {
		o.fail(ctx, jobID, "no step produced a result reference")
		return
	}

	moved, err = o.repo.Complete(ctx, jobID, resultRef)
	if err != nil {
		o.log.Error("failed to complete job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if moved {
		o.observeJob("completed")
		o.log.Info("job completed",
			zap.String("job_id", jobID),
			zap.String("result_reference", resultRef))
	}
}

// executeStep runs one step to a settled state. A nil output with nil error
// means the step was skipped.
func (o *Orchestrator) executeStep(ctx context.Context, j *Job, step *Step, stepCtx map[string]interface{}) (map[string]interface{}, error) {
	condition, err := step.ParseCondition()
	if err != nil {
		msg := fmt.Sprintf("invalid condition: %v", err)
		_ = o.repo.FailStep(ctx, step.ID, msg)
		return nil, errors.New(msg)
	}
	if !condition.Evaluate(stepCtx) {
		o.log.Info("step skipped, condition not met",
			zap.String("job_id", j.ID),
			zap.String("step", step.Name))
		if err := o.repo.SkipStep(ctx, step.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	params := InterpolateParams(step.ParamsMap(), stepCtx, o.log)

	var resp *provider.Response
	if step.ProviderTaskID == "" {
		callCtx, cancel := context.WithTimeout(ctx, stepCallTimeout(step))
		resp, err = o.client.Call(callCtx, provider.EndpointClass(step.EndpointClass), step.Method, step.Path, params, step.RetryPolicy())
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, context.Canceled
			}
			_ = o.repo.FailStep(ctx, step.ID, err.Error())
			return nil, err
		}

		if taskID := resp.TaskID(); taskID != "" && step.StatusPath != "" {
			if err := o.repo.StartStep(ctx, step.ID, taskID); err != nil {
				return nil, err
			}
			step.ProviderTaskID = taskID
		} else {
			return o.settleStep(ctx, step, resp.Data)
		}
	}

	return o.pollStep(ctx, j, step)
}

// pollStep polls the provider until the task settles or attempts run out.
func (o *Orchestrator) pollStep(ctx context.Context, j *Job, step *Step) (map[string]interface{}, error) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for attempts := 0; attempts < o.cfg.MaxPollAttempts; {
		select {
		case <-ctx.Done():
			return nil, context.Canceled
		case <-o.stopCh:
			return nil, context.Canceled
		case <-ticker.C:
		}
		attempts++

		resp, err := o.client.PollStatus(ctx, step.StatusPath, step.ProviderTaskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, context.Canceled
			}
			// Transient poll errors never stop polling early.
			o.log.Warn("status poll failed",
				zap.String("job_id", j.ID),
				zap.String("step", step.Name),
				zap.Int("attempt", attempts),
				zap.Error(err))
			continue
		}

		switch resp.Status() {
		case "completed", "success":
			return o.settleStep(ctx, step, resp.Data)
		case "failed", "error":
			// Surface the provider's message verbatim.
			msg := resp.FailureMessage()
			if msg == "" {
				msg = "unknown provider error"
			}
			_ = o.repo.FailStep(ctx, step.ID, msg)
			return nil, errors.New(msg)
		}
	}

	msg := fmt.Sprintf("task timed out after %d status checks", o.cfg.MaxPollAttempts)
	_ = o.repo.FailStep(ctx, step.ID, msg)
	return nil, errors.New(msg)
}

func (o *Orchestrator) settleStep(ctx context.Context, step *Step, data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	output, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal step output: %w", err)
	}
	if err := o.repo.CompleteStep(ctx, step.ID, output); err != nil {
		return nil, err
	}
	return data, nil
}

func (o *Orchestrator) fail(ctx context.Context, jobID, msg string) {
	moved, err := o.repo.FailWithRefund(ctx, jobID, msg)
	if err != nil {
		o.log.Error("failed to fail job",
			zap.String("job_id", jobID),
			zap.String("reason", msg),
			zap.Error(err))
		return
	}
	if moved {
		o.observeJob("failed")
		if o.metrics != nil {
			o.metrics.RefundsTotal.Inc()
		}
		o.log.Warn("job failed, credits refunded",
			zap.String("job_id", jobID),
			zap.String("error", msg))
	}
}

func (o *Orchestrator) observeJob(status string) {
	if o.metrics != nil {
		o.metrics.JobsTotal.WithLabelValues(status).Inc()
	}
}

func (o *Orchestrator) observeStep(outcome string) {
	if o.metrics != nil {
		o.metrics.StepsTotal.WithLabelValues(outcome).Inc()
	}
}

func contextKey(index int) string {
	return fmt.Sprintf("step%d_result", index)
}

func stepCallTimeout(step *Step) time.Duration {
	if step.TimeoutSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(step.TimeoutSecs) * time.Second
}

func extractResultReference(outputs map[string]interface{}) string {
	for _, field := range resultFields {
		if v, ok := outputs[field].(string); ok && v != "" {
			return v
		}
	}
	if data, ok := outputs["data"].(map[string]interface{}); ok {
		return extractResultReference(data)
	}
	return ""
}
