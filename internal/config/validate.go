package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.OpenAI.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "openai.apiKey",
			Message: "API key is required",
		})
	}
	if cfg.OpenAI.SessionTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "openai.sessionTimeoutSeconds",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.OpenAI.SessionTimeoutSeconds),
		})
	}

	validStores := []string{"file", "sqlite"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	if d := cfg.Channels.Discord; d != nil && d.BotToken == "" {
		issues = append(issues, ValidationIssue{
			Path:    "channels.discord.botToken",
			Message: "bot token is required when the discord channel is enabled",
		})
	}
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.server",
				Message: "server is required when the irc channel is enabled",
			})
		}
		if irc.Nick == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.nick",
				Message: "nick is required when the irc channel is enabled",
			})
		}
	}
	if gw := cfg.Channels.Gateway; gw != nil && (gw.Port < 0 || gw.Port > 65535) {
		issues = append(issues, ValidationIssue{
			Path:    "channels.gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", gw.Port),
		})
	}

	return issues
}
