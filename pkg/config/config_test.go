package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("unexpected default addr: %s", cfg.Server.Addr)
	}
	if cfg.DefaultSessionTimeout() != 30*time.Minute {
		t.Errorf("unexpected default session timeout: %s", cfg.DefaultSessionTimeout())
	}
	if cfg.ReapInterval() != time.Minute {
		t.Errorf("unexpected default reap interval: %s", cfg.ReapInterval())
	}
	if !cfg.Browser.Headless {
		t.Error("browsers should default to headless")
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Addr != ":8000" {
			t.Errorf("expected default addr, got %s", cfg.Server.Addr)
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  addr: ":9090"
session:
  default_timeout_minutes: 15
  reap_interval_seconds: 10
browser:
  headless: false
  start_url: "https://search.example.com"
llm:
  model: "gpt-4o-mini"
  base_url: "http://gateway.test/v1"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Server.Addr != ":9090" {
			t.Errorf("addr not overridden: %s", cfg.Server.Addr)
		}
		if cfg.DefaultSessionTimeout() != 15*time.Minute {
			t.Errorf("timeout not overridden: %s", cfg.DefaultSessionTimeout())
		}
		if cfg.ReapInterval() != 10*time.Second {
			t.Errorf("reap interval not overridden: %s", cfg.ReapInterval())
		}
		if cfg.Browser.Headless {
			t.Error("headless not overridden")
		}
		if cfg.Browser.StartURL != "https://search.example.com" {
			t.Errorf("start url not overridden: %s", cfg.Browser.StartURL)
		}
		if cfg.LLM.Model != "gpt-4o-mini" {
			t.Errorf("model not overridden: %s", cfg.LLM.Model)
		}
	})

	t.Run("partial file keeps remaining defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  addr: \":7070\"\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Addr != ":7070" {
			t.Errorf("addr not overridden: %s", cfg.Server.Addr)
		}
		if cfg.Session.DefaultTimeoutMinutes != 30 {
			t.Errorf("default timeout lost: %d", cfg.Session.DefaultTimeoutMinutes)
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server: [not a mapping"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero timeout", func(c *Config) { c.Session.DefaultTimeoutMinutes = 0 }},
		{"negative timeout", func(c *Config) { c.Session.DefaultTimeoutMinutes = -1 }},
		{"zero reap interval", func(c *Config) { c.Session.ReapIntervalSeconds = 0 }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
