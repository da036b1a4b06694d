package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/metrics"
)

// Completer issues a single chat completion and returns the assistant
// text. Deterministic sampling: temperature is pinned to zero.
type Completer interface {
	Complete(ctx context.Context, system string, turns []Message) (string, error)
}

// ─── OpenAI-compatible wire format ───────────────────────────────────

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int     `json:"index"`
		Message Message `json:"message"`
		Finish  string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	maxRetries int
	role       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client bound to one model. role labels metrics
// and logs ("agent" or "judge").
func NewClient(cfg config.LLMConfig, model, role string, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: retries,
		role:       role,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Complete sends one chat completion request. An optional system
// prompt is prepended to turns. Transport errors and 5xx responses are
// retried with exponential backoff up to the configured limit.
func (c *Client) Complete(ctx context.Context, system string, turns []Message) (string, error) {
	msgs := make([]Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, turns...)

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			metrics.LLMCalls.WithLabelValues(c.role, "success").Inc()
			metrics.LLMLatency.WithLabelValues(c.role).Observe(time.Since(start).Seconds())
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("completion attempt failed",
			zap.String("role", c.role),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	metrics.LLMCalls.WithLabelValues(c.role, "error").Inc()
	return "", fmt.Errorf("chat completion (%s): %w", c.role, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", true, fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("completion endpoint returned %d: %s",
			resp.StatusCode, truncate(string(data), 200))
		return "", resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
