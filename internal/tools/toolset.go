package tools

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/audit"
	"github.com/kubesage/kubesage/internal/config"
)

// NewDebugSet builds the restricted registry for gated debugging
// requests: cluster access through kubectl only.
func NewDebugSet(cfg config.ToolsConfig, timeout time.Duration, logger *zap.Logger, auditor audit.Logger) (*Registry, error) {
	r := NewRegistry(timeout, logger, auditor)
	if err := r.Register(NewKubectlTool(cfg)); err != nil {
		return nil, err
	}
	return r, nil
}

// NewAnalysisSet builds the full registry for cluster state analysis:
// time, kubectl, Loki labels and logs, and Prometheus pod metrics.
func NewAnalysisSet(cfg config.ToolsConfig, timeout time.Duration, logger *zap.Logger, auditor audit.Logger) (*Registry, error) {
	r := NewRegistry(timeout, logger, auditor)
	client := &http.Client{}
	for _, t := range []Tool{
		NewCurrentTimeTool(cfg.TimezoneOffsetHours),
		NewKubectlTool(cfg),
		NewLokiLabelsTool(cfg, client),
		NewLokiLogsTool(cfg, client),
		NewPrometheusPodsTool(cfg, client),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
