package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chopshop/server/internal/shared/config"
	"github.com/chopshop/server/internal/shared/metrics"
	"go.uber.org/zap"
)

// Response is the provider's standard envelope. A non-zero Code signals a
// body-level rejection even on HTTP 200.
type Response struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

// TaskID extracts the asynchronous task identifier, if any. The provider is
// inconsistent about the field name across endpoints.
func (r *Response) TaskID() string {
	if r == nil || r.Data == nil {
		return ""
	}
	for _, key := range []string{"_id", "id", "task_id"} {
		if v, ok := r.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Status returns the task status field from a poll response.
func (r *Response) Status() string {
	if r == nil || r.Data == nil {
		return ""
	}
	if v, ok := r.Data["status"].(string); ok {
		return v
	}
	return ""
}

// FailureMessage returns the provider's error description for a failed task.
func (r *Response) FailureMessage() string {
	if r == nil {
		return ""
	}
	if r.Data != nil {
		for _, key := range []string{"failed_message", "error", "message"} {
			if v, ok := r.Data[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return r.Msg
}

// RetryPolicy bounds retries for a single call. Zero fields fall back to the
// configured defaults, so workflow steps only override what they set.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Client calls the external AI provider with per-class circuit breaking and
// retry-with-backoff on transient failures.
type Client struct {
	httpClient *http.Client
	breakers   *Breakers
	cfg        config.ProviderConfig
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// NewClient creates a provider client.
func NewClient(httpClient *http.Client, breakers *Breakers, cfg config.ProviderConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	return &Client{httpClient: httpClient, breakers: breakers, cfg: cfg, metrics: m, log: log}
}

// Call invokes a provider endpoint through the class breaker, retrying
// transient failures with exponential backoff. Permanent errors (4xx,
// body-level rejections) are returned immediately.
func (c *Client) Call(ctx context.Context, class EndpointClass, method, path string, payload map[string]interface{}, retry RetryPolicy) (*Response, error) {
	start := time.Now()
	resp, err := c.breakers.Execute(class, func() (*Response, error) {
		return c.retry(ctx, method, path, payload, retry)
	})
	c.observe(class, start, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// PollStatus fetches the status of an asynchronous task. Runs through the
// status breaker regardless of the originating endpoint class.
func (c *Client) PollStatus(ctx context.Context, path string, taskID string) (*Response, error) {
	start := time.Now()
	resp, err := c.breakers.Execute(ClassStatus, func() (*Response, error) {
		return c.retry(ctx, http.MethodPost, path, map[string]interface{}{"_id": taskID}, RetryPolicy{})
	})
	c.observe(ClassStatus, start, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CancelTask asks the provider to stop an in-flight task. Best effort; the
// caller proceeds with local cancellation regardless of the outcome.
func (c *Client) CancelTask(ctx context.Context, path string, taskID string) error {
	_, err := c.breakers.Execute(ClassStatus, func() (*Response, error) {
		return c.doRequest(ctx, http.MethodPost, path, map[string]interface{}{"_id": taskID})
	})
	return err
}

func (c *Client) retry(ctx context.Context, method, path string, payload map[string]interface{}, policy RetryPolicy) (*Response, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = c.cfg.RetryMaxAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = c.cfg.RetryBaseDelay
	}
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, method, path, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if IsPermanent(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		c.log.Warn("provider call retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload map[string]interface{}) (*Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Endpoint: path, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Endpoint: path, StatusCode: httpResp.StatusCode, Message: err.Error()}
	}

	if httpResp.StatusCode >= 400 {
		return nil, &Error{Endpoint: path, StatusCode: httpResp.StatusCode, Message: string(data)}
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &Error{Endpoint: path, StatusCode: httpResp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if resp.Code != 0 {
		return nil, &Error{Endpoint: path, StatusCode: httpResp.StatusCode, APICode: resp.Code, Message: resp.Msg}
	}
	return &resp, nil
}

func (c *Client) observe(class EndpointClass, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ProviderCallsTotal.WithLabelValues(string(class), status).Inc()
	c.metrics.ProviderCallDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
}
