// Package metrics exposes Prometheus instrumentation for the request
// pipeline. All metrics carry the kubesage_ prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by endpoint and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubesage_http_requests_total",
			Help: "HTTP requests processed, by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	// RequestDuration observes wall time per endpoint.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubesage_http_request_duration_seconds",
			Help:    "HTTP request duration by endpoint.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"endpoint"},
	)

	// GateDecisions counts policy gate outcomes.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubesage_gate_decisions_total",
			Help: "Policy gate outcomes: allowed, denied, or unavailable.",
		},
		[]string{"decision"},
	)

	// AgentRuns counts reasoning loop terminations by agent and outcome.
	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubesage_agent_runs_total",
			Help: "Reasoning loop runs, by agent and terminal state.",
		},
		[]string{"agent", "outcome"},
	)

	// AgentCycles observes reasoning cycles consumed per run.
	AgentCycles = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubesage_agent_cycles",
			Help:    "Reasoning cycles consumed per completed run.",
			Buckets: prometheus.LinearBuckets(1, 1, 15),
		},
		[]string{"agent"},
	)

	// ToolExecutions counts tool calls by tool and status.
	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubesage_tool_executions_total",
			Help: "Tool executions, by tool name and status.",
		},
		[]string{"tool", "status"},
	)

	// ToolDuration observes tool execution time.
	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubesage_tool_duration_seconds",
			Help:    "Tool execution duration by tool name.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"tool"},
	)

	// LLMCalls counts chat-completion calls by role and status.
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubesage_llm_calls_total",
			Help: "Chat completion calls, by model role and status.",
		},
		[]string{"role", "status"},
	)

	// LLMLatency observes chat-completion latency.
	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubesage_llm_latency_seconds",
			Help:    "Chat completion latency by model role.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"role"},
	)

	// SessionMessages gauges stored messages per operation outcome.
	SessionMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubesage_session_messages_total",
			Help: "Conversation messages appended, by role.",
		},
		[]string{"role"},
	)
)
