package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chopshop/server/internal/shared/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:                   baseURL,
		APIKey:                    "test-key",
		RetryMaxAttempts:          3,
		RetryBaseDelay:            time.Millisecond,
		BreakerThreshold:          5,
		BreakerOpenDuration:       50 * time.Millisecond,
		StatusBreakerThreshold:    10,
		StatusBreakerOpenDuration: 30 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testProviderConfig(server.URL)
	breakers := NewBreakers(cfg, nil, zap.NewNop())
	client := NewClient(server.Client(), breakers, cfg, nil, zap.NewNop())
	return client, server
}

func TestClient_Call_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"code":0,"data":{"_id":"task-123"}}`))
	}))

	resp, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/api/v1/video/generate", map[string]interface{}{"duration": 15}, RetryPolicy{})
	require.NoError(t, err)
	assert.Equal(t, "task-123", resp.TaskID())
}

func TestClient_Call_PermanentErrorNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/api/v1/video/generate", nil, RetryPolicy{})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Call_TransientErrorRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"code":0,"data":{"_id":"task-1"}}`))
	}))

	resp, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/api/v1/video/generate", nil, RetryPolicy{})
	require.NoError(t, err)
	assert.Equal(t, "task-1", resp.TaskID())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Call_PerCallRetryPolicyOverridesDefaults(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	// Config allows 3 attempts; the call's own policy caps it at 2.
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	_, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/api/v1/video/generate", nil, policy)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Call_BodyLevelRejection(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"code":1001,"msg":"invalid avatar id"}`))
	}))

	_, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/api/v1/video/generate", nil, RetryPolicy{})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "invalid avatar id")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBreakers_OpenAfterThresholdAndProbe(t *testing.T) {
	var calls int32
	var healthy atomic.Bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if healthy.Load() {
			w.Write([]byte(`{"code":0,"data":{}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	// Each Call burns RetryMaxAttempts requests but counts as one breaker
	// failure. Threshold is 5.
	for i := 0; i < 5; i++ {
		_, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/fail", nil, RetryPolicy{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, client.breakers.State(ClassVideo))

	// Open circuit fails fast without touching the provider.
	before := atomic.LoadInt32(&calls)
	_, err := client.Call(context.Background(), ClassVideo, http.MethodPost, "/fail", nil, RetryPolicy{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt32(&calls))

	// After the open window one probe is allowed through and success closes
	// the circuit.
	healthy.Store(true)
	time.Sleep(60 * time.Millisecond)
	_, err = client.Call(context.Background(), ClassVideo, http.MethodPost, "/ok", nil, RetryPolicy{})
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, client.breakers.State(ClassVideo))
}

func TestClient_PollStatus_UsesStatusClass(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"status":"completed","result":"https://cdn.example.com/video.mp4"}}`))
	}))

	resp, err := client.PollStatus(context.Background(), "/api/v1/video/awsResult", "task-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status())
}

func TestResponse_FailureMessage(t *testing.T) {
	resp := &Response{Data: map[string]interface{}{"failed_message": "NSFW content detected"}}
	assert.Equal(t, "NSFW content detected", resp.FailureMessage())

	resp = &Response{Msg: "generic failure"}
	assert.Equal(t, "generic failure", resp.FailureMessage())
}
