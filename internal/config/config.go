// Package config loads and validates the sagebridge YAML configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		OpenAI: OpenAIConfig{
			BaseURL:               "https://api.openai.com/v1",
			Model:                 "gpt-4o",
			SessionTimeoutSeconds: 3600,
		},
		Session: SessionConfig{
			Store: "file",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = def.OpenAI.BaseURL
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = def.OpenAI.Model
	}
	if cfg.OpenAI.SessionTimeoutSeconds == 0 {
		cfg.OpenAI.SessionTimeoutSeconds = def.OpenAI.SessionTimeoutSeconds
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = def.Session.Store
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}
