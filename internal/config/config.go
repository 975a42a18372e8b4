package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the service. It is
// built once at startup and passed by reference into each component.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"chatrelay"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server. When the port is taken the server retries on successive
	// ports, up to PortAttempts.
	Port         int `env:"PORT" envDefault:"5001"`
	PortAttempts int `env:"PORT_ATTEMPTS" envDefault:"10"`

	// Generation provider.
	APIKey     string `env:"OPENAI_API_KEY"`
	APIBaseURL string `env:"OPENAI_API_BASE_URL" envDefault:"https://api.openai.com/v1"`

	// Upload storage. UploadDir is the authoritative private store,
	// PublicDir the statically served mirror.
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"./data/uploads"`
	PublicDir     string `env:"STATIC_UPLOAD_DIR" envDefault:"./static/uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5001"`

	// Interaction log (newline-delimited JSON, append-only).
	InteractionLogPath string `env:"INTERACTION_LOG" envDefault:"./logs/interactions.jsonl"`

	// Front-end assets served on / and unmatched routes.
	WebDir string `env:"WEB_DIR" envDefault:"./web"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("PORT must be positive, got %d", cfg.Port)
	}
	if cfg.PortAttempts <= 0 {
		cfg.PortAttempts = 1
	}
	return cfg, nil
}

// Addr returns the HTTP listen address for the given port.
func (c *Config) Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}
