package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Manager loads configuration from file and environment and supports
// hot reload of the config file.
type Manager struct {
	mu       sync.RWMutex
	v        *viper.Viper
	current  *Config
	onChange []func(*Config)
}

// NewManager builds a Manager with defaults applied. Environment
// variables prefixed KUBESAGE_ override file values, with dots mapped
// to underscores (e.g. KUBESAGE_LLM_BASE_URL).
func NewManager() *Manager {
	v := viper.New()
	v.SetEnvPrefix("KUBESAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Manager{v: v}
}

// Load reads the config file at path (optional, empty path means
// defaults plus environment) and validates the result.
func (m *Manager) Load(path string) (*Config, error) {
	if path != "" {
		m.v.SetConfigFile(path)
		if err := m.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg, err := m.unmarshal()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Current returns the most recently loaded configuration.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Watch re-reads the config file on change and notifies fn with the new
// configuration. Invalid reloads are dropped and the previous config
// stays active.
func (m *Manager) Watch(fn func(*Config)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()

	m.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := m.unmarshal()
		if err != nil {
			return
		}
		m.mu.Lock()
		m.current = cfg
		handlers := make([]func(*Config), len(m.onChange))
		copy(handlers, m.onChange)
		m.mu.Unlock()
		for _, h := range handlers {
			h(cfg)
		}
	})
	m.v.WatchConfig()
}

func (m *Manager) unmarshal() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("llm.base_url", "http://localhost:8000/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.agent_model", "qwen2.5-32b-instruct")
	v.SetDefault("llm.judge_model", "qwen2.5-32b-instruct")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.request_timeout", 120*time.Second)
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("agent.max_cycles", 15)
	v.SetDefault("agent.max_parse_errors", 2)
	v.SetDefault("agent.tool_timeout", 30*time.Second)

	v.SetDefault("policy.enabled", true)
	v.SetDefault("policy.fail_closed", false)

	v.SetDefault("tools.jump_server_host", "")
	v.SetDefault("tools.jump_server_ssh_arguments", "")
	v.SetDefault("tools.loki_api_url", "")
	v.SetDefault("tools.prometheus_api_url", "")
	v.SetDefault("tools.timezone_offset_hours", 0)

	v.SetDefault("session.default_id", "")
	v.SetDefault("session.recent_window", 3)

	v.SetDefault("database.path", "kubesage.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.app_log_path", "logs/kubesage.log")
	v.SetDefault("logging.audit_log_path", "logs/audit.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}
