package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/agent"
	"github.com/kubesage/kubesage/internal/audit"
	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/history"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/logging"
	"github.com/kubesage/kubesage/internal/policy"
	"github.com/kubesage/kubesage/internal/server"
	"github.com/kubesage/kubesage/internal/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kubesage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	manager := config.NewManager()
	cfg, err := manager.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging)
	defer logger.Sync()

	auditor := audit.NewLogger(cfg.Logging, logger)
	defer auditor.Close()

	store, err := history.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer store.Close()
	coordinator := history.NewCoordinator(store, cfg.Session.DefaultID)

	agentClient, err := llm.NewClient(cfg.LLM, cfg.LLM.AgentModel, "agent", logger)
	if err != nil {
		return err
	}
	judgeClient, err := llm.NewClient(cfg.LLM, cfg.LLM.JudgeModel, "judge", logger)
	if err != nil {
		return err
	}

	debugSet, err := tools.NewDebugSet(cfg.Tools, cfg.Agent.ToolTimeout, logger, auditor)
	if err != nil {
		return fmt.Errorf("build debug tool set: %w", err)
	}
	analysisSet, err := tools.NewAnalysisSet(cfg.Tools, cfg.Agent.ToolTimeout, logger, auditor)
	if err != nil {
		return fmt.Errorf("build analysis tool set: %w", err)
	}

	gate := policy.NewGate(judgeClient, cfg.Policy, logger, auditor)
	debugLoop := agent.NewDebugLoop(agentClient, debugSet, cfg.Agent, logger)
	analysisLoop := agent.NewAnalysisLoop(agentClient, analysisSet, cfg.Agent, logger)

	srv := server.New(cfg, logger, auditor, gate, debugLoop, analysisLoop, coordinator, store)

	if *configPath != "" {
		// The pipeline is wired once at startup; reloads are recorded
		// so operators see that a restart is needed to apply them.
		manager.Watch(func(*config.Config) {
			logger.Info("config file changed, restart to apply")
			_ = auditor.Log(context.Background(), audit.NewEvent(audit.EventConfigReload).
				WithDescription("config file changed"))
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}
