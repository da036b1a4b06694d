package config

import (
	"fmt"
	"time"
)

// Config holds the full runtime configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LLMConfig controls the chat-completions backend shared by the agents
// and the policy judge.
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	AgentModel     string        `mapstructure:"agent_model"`
	JudgeModel     string        `mapstructure:"judge_model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxCycles      int           `mapstructure:"max_cycles"`
	MaxParseErrors int           `mapstructure:"max_parse_errors"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
}

// PolicyConfig controls the pre-execution request gate.
type PolicyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// FailClosed denies requests when the judge backend is unreachable
	// instead of surfacing 503.
	FailClosed bool `mapstructure:"fail_closed"`
}

// ToolsConfig carries the cluster access endpoints used by the tool set.
type ToolsConfig struct {
	JumpServerHost string `mapstructure:"jump_server_host"`
	JumpServerSSH  string `mapstructure:"jump_server_ssh_arguments"`
	LokiURL        string `mapstructure:"loki_api_url"`
	PrometheusURL  string `mapstructure:"prometheus_api_url"`
	// TimezoneOffsetHours shifts current_time results from UTC.
	TimezoneOffsetHours int `mapstructure:"timezone_offset_hours"`
}

// SessionConfig controls conversation session defaults.
type SessionConfig struct {
	// DefaultID is used when a request carries no session_id. Empty means
	// a fresh UUID is generated at startup.
	DefaultID string `mapstructure:"default_id"`
	// RecentWindow is the number of trailing turns replayed to the agent.
	RecentWindow int `mapstructure:"recent_window"`
}

// DatabaseConfig points at the SQLite conversation store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls the application and audit log sinks.
type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	AppLogPath   string `mapstructure:"app_log_path"`
	AuditLogPath string `mapstructure:"audit_log_path"`
	MaxSizeMB    int    `mapstructure:"max_size_mb"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAgeDays   int    `mapstructure:"max_age_days"`
	Compress     bool   `mapstructure:"compress"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.AgentModel == "" {
		return fmt.Errorf("llm.agent_model is required")
	}
	if c.Agent.MaxCycles <= 0 {
		return fmt.Errorf("agent.max_cycles must be positive, got %d", c.Agent.MaxCycles)
	}
	if c.Agent.MaxParseErrors < 0 {
		return fmt.Errorf("agent.max_parse_errors must not be negative, got %d", c.Agent.MaxParseErrors)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Session.RecentWindow < 0 {
		return fmt.Errorf("session.recent_window must not be negative, got %d", c.Session.RecentWindow)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
