package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kubesage/kubesage/internal/config"
)

// NewKubectlTool executes kubectl commands on the cluster's jump
// server over SSH. The SSH invocation prefix (binary, identity, flags)
// comes from configuration.
func NewKubectlTool(cfg config.ToolsConfig) Tool {
	return Tool{
		Name: "kubectl_command",
		Description: "Execute commands on specific Kubernetes nodes or within the cluster (e.g., kubectl). " +
			"Use for gathering detailed configuration, logs, or diagnostic information. " +
			"This tool runs the command on a remote jump server via SSH. " +
			"Carefully handle sensitive commands and ensure they are safe to execute.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command to execute on the jump server",
				},
			},
			"required": []string{"command"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			command, err := stringArg(args, "command")
			if err != nil {
				return nil, err
			}
			if cfg.JumpServerHost == "" {
				return nil, fmt.Errorf("jump server is not configured")
			}

			remote := fmt.Sprintf("%s %s '%s'", cfg.JumpServerSSH, cfg.JumpServerHost, command)
			cmd := exec.CommandContext(ctx, "/bin/sh", "-c", remote)

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			if err := cmd.Run(); err != nil {
				msg := strings.TrimSpace(stderr.String())
				if msg == "" {
					msg = err.Error()
				}
				return map[string]any{
					"status":  "error",
					"output":  msg,
					"command": command,
				}, nil
			}

			// Whitespace is stripped to keep observations compact for
			// the model's context window.
			return map[string]any{
				"status":  "success",
				"output":  strings.ReplaceAll(stdout.String(), " ", ""),
				"command": command,
			}, nil
		},
	}
}
