package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kubesage/kubesage/internal/config"
)

// NewPrometheusPodsTool reports current resource metrics for all
// monitored pods, grouped by namespace.
func NewPrometheusPodsTool(cfg config.ToolsConfig, client *http.Client) Tool {
	return Tool{
		Name: "prometheus_pods_metrics",
		Description: "Get comprehensive metrics for all monitored Kubernetes pods, " +
			"including CPU usage, memory usage, network I/O, and pod status. " +
			"Only current metrics are available, no historical data and no disk I/O. " +
			"Results are grouped by namespace.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			var body json.RawMessage
			if err := getJSON(ctx, client, cfg.PrometheusURL+"/pods", nil, &body); err != nil {
				return nil, fmt.Errorf("Prometheus API request failed: %w", err)
			}
			return map[string]any{
				"status":       "success",
				"pods_metrics": body,
			}, nil
		},
	}
}
