// Package config holds the websearcherd service configuration: an
// optional YAML file layered over built-in defaults, with environment
// fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Browser BrowserConfig `yaml:"browser"`
	LLM     LLMConfig     `yaml:"llm"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SessionConfig configures session lifecycle behavior.
type SessionConfig struct {
	// DefaultTimeoutMinutes is the idle timeout for sessions created
	// without an explicit one.
	DefaultTimeoutMinutes int `yaml:"default_timeout_minutes"`

	// ReapIntervalSeconds is the reaper sweep cadence.
	ReapIntervalSeconds int `yaml:"reap_interval_seconds"`
}

// BrowserConfig configures the Playwright engine.
type BrowserConfig struct {
	Headless bool   `yaml:"headless"`
	StartURL string `yaml:"start_url"`

	// MaxContentTokens caps page text per prompt.
	MaxContentTokens int `yaml:"max_content_tokens"`
}

// LLMConfig configures the completion provider. APIKey falls back to the
// OPENAI_API_KEY environment variable when unset.
type LLMConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Session: SessionConfig{
			DefaultTimeoutMinutes: 30,
			ReapIntervalSeconds:   60,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		LLM: LLMConfig{
			Model: "gpt-4o",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot start
// with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Session.DefaultTimeoutMinutes <= 0 {
		return fmt.Errorf("session.default_timeout_minutes must be positive")
	}
	if c.Session.ReapIntervalSeconds <= 0 {
		return fmt.Errorf("session.reap_interval_seconds must be positive")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	return nil
}

// DefaultSessionTimeout returns the configured default timeout as a
// duration.
func (c *Config) DefaultSessionTimeout() time.Duration {
	return time.Duration(c.Session.DefaultTimeoutMinutes) * time.Minute
}

// ReapInterval returns the configured reaper cadence as a duration.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Session.ReapIntervalSeconds) * time.Second
}
