package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/config"
)

func completionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	c, err := NewClient(config.LLMConfig{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     retries,
	}, "test-model", "agent", zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestCompleteReturnsAssistantText(t *testing.T) {
	var gotReq chatRequest
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "pong"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	c := testClient(t, srv.URL, 0)
	text, err := c.Complete(context.Background(), "be brief", []Message{User("ping")})
	require.NoError(t, err)
	assert.Equal(t, "pong", text)

	// System prompt is prepended and sampling is deterministic.
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, RoleSystem, gotReq.Messages[0].Role)
	assert.Equal(t, "be brief", gotReq.Messages[0].Content)
	assert.Zero(t, gotReq.Temperature)
	assert.Equal(t, "test-model", gotReq.Model)
}

func TestCompleteRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	})

	c := testClient(t, srv.URL, 2)
	text, err := c.Complete(context.Background(), "", []Message{User("x")})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCompleteDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int64
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	c := testClient(t, srv.URL, 3)
	_, err := c.Complete(context.Background(), "", []Message{User("x")})
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCompleteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	c := testClient(t, srv.URL, 1)
	_, err := c.Complete(context.Background(), "", []Message{User("x")})
	assert.Error(t, err)
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	c := testClient(t, srv.URL, 0)
	_, err := c.Complete(context.Background(), "", []Message{User("x")})
	assert.ErrorContains(t, err, "no choices")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.LLMConfig{}, "m", "agent", zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(config.LLMConfig{BaseURL: "http://x"}, "", "agent", zap.NewNop())
	assert.Error(t, err)
}
