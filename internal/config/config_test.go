package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	m := NewManager()
	cfg, err := m.Load("")
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Agent.MaxCycles)
	assert.Equal(t, 2, cfg.Agent.MaxParseErrors)
	assert.True(t, cfg.Policy.Enabled)
	assert.False(t, cfg.Policy.FailClosed)
	assert.Equal(t, 3, cfg.Session.RecentWindow)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9999
llm:
  base_url: http://llm.internal:8000/v1
  agent_model: test-model
agent:
  max_cycles: 5
policy:
  fail_closed: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := NewManager().Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "http://llm.internal:8000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 5, cfg.Agent.MaxCycles)
	assert.True(t, cfg.Policy.FailClosed)
	// Untouched sections keep defaults.
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("KUBESAGE_SERVER_PORT", "7070")
	t.Setenv("KUBESAGE_LLM_AGENT_MODEL", "env-model")

	cfg, err := NewManager().Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-model", cfg.LLM.AgentModel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	m := NewManager()
	cfg, err := m.Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Agent.MaxCycles = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Agent.MaxParseErrors = -1
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.Path = ""
	assert.Error(t, bad.Validate())
}

func TestAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 5001}
	assert.Equal(t, "127.0.0.1:5001", s.Addr())
}
