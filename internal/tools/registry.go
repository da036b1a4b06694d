// Package tools implements the cluster inspection tools exposed to the
// reasoning agents and the registry that executes them.
//
// Tools never fail the caller: handler errors are folded into a
// structured error payload so the agent can observe and recover.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/audit"
	"github.com/kubesage/kubesage/internal/metrics"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool describes one callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Handler     Handler        `json:"-"`
}

// Registry holds a named set of tools and executes them with a
// per-call timeout.
type Registry struct {
	timeout time.Duration
	logger  *zap.Logger
	auditor audit.Logger

	mu    sync.RWMutex
	tools map[string]*Tool

	stats struct {
		sync.Mutex
		totalCalls  int64
		failedCalls int64
		callsByTool map[string]int64
	}
}

// NewRegistry creates an empty registry. timeout bounds each tool
// execution; zero means 30 seconds.
func NewRegistry(timeout time.Duration, logger *zap.Logger, auditor audit.Logger) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Registry{
		timeout: timeout,
		logger:  logger,
		auditor: auditor,
		tools:   make(map[string]*Tool),
	}
	r.stats.callsByTool = make(map[string]int64)
	return r
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = &t
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named tool and returns its result serialized as a
// JSON observation string. Handler errors and timeouts are converted
// into an error payload, never a Go error; only an unknown tool name
// fails the call.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := runHandler(ctx, tool.Handler, args)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		result = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
		r.logger.Warn("tool execution failed",
			zap.String("tool", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	}

	r.recordCall(name, err)
	metrics.ToolExecutions.WithLabelValues(name, status).Inc()
	metrics.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if r.auditor != nil {
		eventType := audit.EventToolExecuted
		if err != nil {
			eventType = audit.EventToolFailed
		}
		_ = r.auditor.Log(ctx, audit.NewEvent(eventType).
			WithTool(name).
			WithError(err).
			WithDuration(elapsed))
	}

	payload, merr := json.Marshal(result)
	if merr != nil {
		payload, _ = json.Marshal(map[string]any{
			"status": "error",
			"error":  fmt.Sprintf("serialize tool result: %v", merr),
		})
	}
	return string(payload), nil
}

// runHandler isolates the handler call so a timeout cuts it off even
// when the handler ignores its context.
func runHandler(ctx context.Context, h Handler, args map[string]any) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := h(ctx, args)
		ch <- outcome{res, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("tool timed out: %w", ctx.Err())
	case out := <-ch:
		return out.result, out.err
	}
}

func (r *Registry) recordCall(name string, err error) {
	r.stats.Lock()
	defer r.stats.Unlock()
	r.stats.totalCalls++
	if err != nil {
		r.stats.failedCalls++
	}
	r.stats.callsByTool[name]++
}

// Stats returns a snapshot of registry counters.
func (r *Registry) Stats() map[string]any {
	r.stats.Lock()
	defer r.stats.Unlock()
	byTool := make(map[string]int64, len(r.stats.callsByTool))
	for k, v := range r.stats.callsByTool {
		byTool[k] = v
	}
	return map[string]any{
		"total_calls":   r.stats.totalCalls,
		"failed_calls":  r.stats.failedCalls,
		"calls_by_tool": byTool,
	}
}
