package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CASTELLAN_AGENT_ENDPOINT", "https://ai.example")
	t.Setenv("CASTELLAN_AGENT_ID", "agent-7")
	t.Setenv("CASTELLAN_APP_ID", "app-1")
	t.Setenv("CASTELLAN_APP_PASSWORD", "secret")
	t.Setenv("CASTELLAN_TENANT_ID", "tenant-1")
	t.Setenv("CASTELLAN_CLIENT_ID", "client-1")
	t.Setenv("CASTELLAN_API_KEY", "key-1")
}

func TestLoad_AllRequired(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Endpoint != "https://ai.example" {
		t.Errorf("Agent.Endpoint = %q", cfg.Agent.Endpoint)
	}
	if cfg.Server.Port != 3978 {
		t.Errorf("Server.Port = %d, want default 3978", cfg.Server.Port)
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("Session.MaxAge = %v, want 24h default", cfg.Session.MaxAge)
	}
}

func TestLoad_MissingRequiredNamesVariables(t *testing.T) {
	setRequired(t)
	t.Setenv("CASTELLAN_AGENT_ENDPOINT", "")
	t.Setenv("CASTELLAN_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded despite missing required variables")
	}
	for _, want := range []string{"CASTELLAN_AGENT_ENDPOINT", "CASTELLAN_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CASTELLAN_PORT", "8080")
	t.Setenv("CASTELLAN_SESSION_MAX_AGE_HOURS", "48")
	t.Setenv("CASTELLAN_SWEEP_INTERVAL_MINUTES", "15")
	t.Setenv("CASTELLAN_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Session.MaxAge != 48*time.Hour {
		t.Errorf("Session.MaxAge = %v, want 48h", cfg.Session.MaxAge)
	}
	if cfg.Session.SweepInterval != 15*time.Minute {
		t.Errorf("Session.SweepInterval = %v, want 15m", cfg.Session.SweepInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("CASTELLAN_PORT", "not-a-port")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 3978 {
		t.Errorf("Server.Port = %d, want default on bad value", cfg.Server.Port)
	}
}
