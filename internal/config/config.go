// Package config provides application configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Agent    AgentConfig
	Platform PlatformConfig
	Storage  StorageConfig
	Session  SessionConfig
	Log      LogConfig
}

// ServerConfig controls the HTTP listener and API authentication.
type ServerConfig struct {
	Port   int
	APIKey string // shared secret for the notification/alert endpoints
}

// AgentConfig identifies the conversational AI backend.
type AgentConfig struct {
	Endpoint string // base URL of the AI backend
	AgentID  string // agent/assistant identifier on the backend
}

// PlatformConfig carries the chat-platform identity used for proactive
// sends. Token exchange itself is handled by the platform side; the
// service only needs the identity material and a bearer token.
type PlatformConfig struct {
	AppID    string
	Password string
	TenantID string
	ClientID string
	Token    string // bearer token attached to proactive sends
}

// StorageConfig locates the preference database.
type StorageConfig struct {
	DataDir string
}

// SessionConfig tunes session eviction.
type SessionConfig struct {
	MaxAge        time.Duration
	SweepInterval time.Duration
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 3978,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			MaxAge:        24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "castellan")
	}
	return "./data"
}

// Load reads configuration from environment variables, applying defaults
// for optional values. It returns an error naming every missing required
// variable so misconfiguration fails fast at startup.
func Load() (Config, error) {
	cfg := defaults()

	cfg.Server.Port = getEnvInt("CASTELLAN_PORT", cfg.Server.Port)
	cfg.Server.APIKey = os.Getenv("CASTELLAN_API_KEY")
	cfg.Agent.Endpoint = os.Getenv("CASTELLAN_AGENT_ENDPOINT")
	cfg.Agent.AgentID = os.Getenv("CASTELLAN_AGENT_ID")
	cfg.Platform.AppID = os.Getenv("CASTELLAN_APP_ID")
	cfg.Platform.Password = os.Getenv("CASTELLAN_APP_PASSWORD")
	cfg.Platform.TenantID = os.Getenv("CASTELLAN_TENANT_ID")
	cfg.Platform.ClientID = os.Getenv("CASTELLAN_CLIENT_ID")
	cfg.Platform.Token = os.Getenv("CASTELLAN_PLATFORM_TOKEN")
	cfg.Storage.DataDir = getEnv("CASTELLAN_DATA_DIR", cfg.Storage.DataDir)
	cfg.Log.Level = getEnv("CASTELLAN_LOG_LEVEL", cfg.Log.Level)

	if hours := getEnvInt("CASTELLAN_SESSION_MAX_AGE_HOURS", 0); hours > 0 {
		cfg.Session.MaxAge = time.Duration(hours) * time.Hour
	}
	if mins := getEnvInt("CASTELLAN_SWEEP_INTERVAL_MINUTES", 0); mins > 0 {
		cfg.Session.SweepInterval = time.Duration(mins) * time.Minute
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that all required configuration values are present.
func (c Config) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"CASTELLAN_AGENT_ENDPOINT", c.Agent.Endpoint},
		{"CASTELLAN_AGENT_ID", c.Agent.AgentID},
		{"CASTELLAN_APP_ID", c.Platform.AppID},
		{"CASTELLAN_APP_PASSWORD", c.Platform.Password},
		{"CASTELLAN_TENANT_ID", c.Platform.TenantID},
		{"CASTELLAN_CLIENT_ID", c.Platform.ClientID},
		{"CASTELLAN_API_KEY", c.Server.APIKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
