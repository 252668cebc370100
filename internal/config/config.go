package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig payment server endpoints
type ServerConfig struct {
	WebSocketURL string `yaml:"websocket_url"` // persistent session channel
	GraphQLURL   string `yaml:"graphql_url"`   // fallback + query endpoint
}

// AuthConfig session token configuration
type AuthConfig struct {
	Token     string `yaml:"token"`      // session JWT (dev/testing only)
	TokenFile string `yaml:"token_file"` // file holding the session JWT
}

// TimeoutConfig per-phase bounded timeouts in seconds
type TimeoutConfig struct {
	PrepareSeconds int `yaml:"prepare_seconds"`
	SubmitSeconds  int `yaml:"submit_seconds"`
}

// RecoveryConfig conflict recovery polling budget
type RecoveryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// LoggingConfig log output configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AppConfig global configuration instance
var AppConfig *Config

// Default returns the configuration with protocol defaults applied:
// 15s prepare, 20s submit, 3 recovery polls at 250ms
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WebSocketURL: "wss://api.confio.lat/ws/pay",
			GraphQLURL:   "https://api.confio.lat/graphql/",
		},
		Timeouts: TimeoutConfig{
			PrepareSeconds: 15,
			SubmitSeconds:  20,
		},
		Recovery: RecoveryConfig{
			MaxAttempts: 3,
			BackoffMs:   250,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration file, applies defaults and env overrides,
// and sets AppConfig
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	overrideFromEnv(config)
	applyDefaults(config)

	AppConfig = config
	return config, nil
}

// overrideFromEnv environment variables take precedence over the file
func overrideFromEnv(config *Config) {
	if url := os.Getenv("CONFIO_WS_URL"); url != "" {
		config.Server.WebSocketURL = url
	}
	if url := os.Getenv("CONFIO_GRAPHQL_URL"); url != "" {
		config.Server.GraphQLURL = url
	}
	if token := os.Getenv("CONFIO_AUTH_TOKEN"); token != "" {
		config.Auth.Token = token
	}
	if v := os.Getenv("CONFIO_PREPARE_TIMEOUT"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			config.Timeouts.PrepareSeconds = t
		}
	}
	if v := os.Getenv("CONFIO_SUBMIT_TIMEOUT"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			config.Timeouts.SubmitSeconds = t
		}
	}
	if level := os.Getenv("CONFIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

func applyDefaults(config *Config) {
	if config.Timeouts.PrepareSeconds <= 0 {
		config.Timeouts.PrepareSeconds = 15
	}
	if config.Timeouts.SubmitSeconds <= 0 {
		config.Timeouts.SubmitSeconds = 20
	}
	if config.Recovery.MaxAttempts <= 0 {
		config.Recovery.MaxAttempts = 3
	}
	if config.Recovery.BackoffMs <= 0 {
		config.Recovery.BackoffMs = 250
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
}

// SessionToken resolves the session JWT, preferring the inline value
func (c *Config) SessionToken() (string, error) {
	if c.Auth.Token != "" {
		return c.Auth.Token, nil
	}
	if c.Auth.TokenFile != "" {
		data, err := os.ReadFile(c.Auth.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("no session token configured")
}

// PrepareTimeout bounded prepare deadline
func (c *Config) PrepareTimeout() time.Duration {
	return time.Duration(c.Timeouts.PrepareSeconds) * time.Second
}

// SubmitTimeout bounded submit deadline
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Timeouts.SubmitSeconds) * time.Second
}

// RecoveryBackoff fixed delay between recovery polls
func (c *Config) RecoveryBackoff() time.Duration {
	return time.Duration(c.Recovery.BackoffMs) * time.Millisecond
}
