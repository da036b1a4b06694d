package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/config"
)

func TestDebugSetIsKubectlOnly(t *testing.T) {
	r, err := NewDebugSet(config.ToolsConfig{JumpServerHost: "jump"}, time.Second, zap.NewNop(), nil)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "kubectl_command", list[0].Name)
	assert.False(t, r.Has("loki_logs_query"))
}

func TestAnalysisSetFullCatalogue(t *testing.T) {
	r, err := NewAnalysisSet(config.ToolsConfig{}, time.Second, zap.NewNop(), nil)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"current_time",
		"kubectl_command",
		"loki_labels_query",
		"loki_logs_query",
		"prometheus_pods_metrics",
	}, names)
}

func TestCurrentTimeTool(t *testing.T) {
	tool := NewCurrentTimeTool(8)
	res, err := tool.Handler(context.Background(), nil)
	require.NoError(t, err)

	payload := res.(map[string]any)
	assert.Equal(t, "success", payload["status"])

	zone := time.FixedZone("UTC+8", 8*3600)
	got, err := time.ParseInLocation("2006-01-02 15:04:05", payload["current_time"].(string), zone)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().In(zone), got, 5*time.Second)
}

func TestLokiLabelsTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/labels", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"labels": map[string]any{"app": []string{"grafana", "prometheus"}},
		})
	}))
	defer srv.Close()

	tool := NewLokiLabelsTool(config.ToolsConfig{LokiURL: srv.URL}, srv.Client())
	res, err := tool.Handler(context.Background(), nil)
	require.NoError(t, err)

	payload := res.(map[string]any)
	assert.Equal(t, "success", payload["status"])
	assert.NotNil(t, payload["labels"])
}

func TestLokiLogsToolFiltersInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logs", r.URL.Path)
		assert.Equal(t, `{app="x"}`, r.URL.Query().Get("query"))
		json.NewEncoder(w).Encode(map[string]any{
			"stream": "x",
			"values": []map[string]string{
				{"timestamp": "t1", "log": "INFO started up"},
				{"timestamp": "t2", "log": "error: crash loop"},
			},
		})
	}))
	defer srv.Close()

	tool := NewLokiLogsTool(config.ToolsConfig{LokiURL: srv.URL}, srv.Client())
	res, err := tool.Handler(context.Background(), map[string]any{
		"query":      `{app="x"}`,
		"start_time": "2026-01-01 00:00:00",
		"end_time":   "2026-01-01 01:00:00",
	})
	require.NoError(t, err)

	payload := res.(map[string]any)
	logs := payload["logs"].([]logEntry)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Log, "error")
}

func TestLokiLogsToolDebugKeepsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"stream": "x",
			"values": []map[string]string{
				{"timestamp": "t1", "log": "info: all good"},
				{"timestamp": "t2", "log": "warn: slow"},
			},
		})
	}))
	defer srv.Close()

	tool := NewLokiLogsTool(config.ToolsConfig{LokiURL: srv.URL}, srv.Client())
	res, err := tool.Handler(context.Background(), map[string]any{
		"query":      `{app="x"}`,
		"start_time": "2026-01-01 00:00:00",
		"end_time":   "2026-01-01 01:00:00",
		"debug":      true,
	})
	require.NoError(t, err)

	payload := res.(map[string]any)
	assert.Len(t, payload["logs"].([]logEntry), 2)
}

func TestLokiLogsToolPlaceholderWhenOnlyInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"stream": "x",
			"values": []map[string]string{
				{"timestamp": "t1", "log": "info: nothing to see"},
			},
		})
	}))
	defer srv.Close()

	tool := NewLokiLogsTool(config.ToolsConfig{LokiURL: srv.URL}, srv.Client())
	res, err := tool.Handler(context.Background(), map[string]any{
		"query":      `{app="x"}`,
		"start_time": "2026-01-01 00:00:00",
		"end_time":   "2026-01-01 01:00:00",
	})
	require.NoError(t, err)

	payload := res.(map[string]any)
	logs := payload["logs"].([]logEntry)
	require.Len(t, logs, 1)
	assert.Equal(t, "No critical logs found", logs[0].Log)
}

func TestPrometheusPodsTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pods", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"default": map[string]any{"web-1": map[string]any{"cpu": 0.2}},
		})
	}))
	defer srv.Close()

	tool := NewPrometheusPodsTool(config.ToolsConfig{PrometheusURL: srv.URL}, srv.Client())
	res, err := tool.Handler(context.Background(), nil)
	require.NoError(t, err)

	payload := res.(map[string]any)
	assert.Equal(t, "success", payload["status"])
}

func TestLokiToolUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewLokiLabelsTool(config.ToolsConfig{LokiURL: srv.URL}, srv.Client())
	_, err := tool.Handler(context.Background(), nil)
	assert.Error(t, err)
}
