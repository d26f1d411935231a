package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Placeholder values shipped in .env.example; treated the same as missing keys.
const (
	placeholderOpenAIKey = "sk-your-api-key-here"
	placeholderTTSKey    = "your-tts-api-key-here"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Stripe: warn only, billing endpoints fail individually when unset
	if c.Stripe.SecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY is empty, billing endpoints are unavailable")
	}
	if c.Stripe.WebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is empty, webhook signature verification will reject all events")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// OpenAIConfigured reports whether a usable OpenAI key is present.
// A placeholder value from .env.example counts as not configured.
func (c *Config) OpenAIConfigured() bool {
	return c.OpenAI.APIKey != "" && c.OpenAI.APIKey != placeholderOpenAIKey
}

// TTSConfigured reports whether a usable TTS key is present.
func (c *Config) TTSConfigured() bool {
	return c.TTS.APIKey != "" && c.TTS.APIKey != placeholderTTSKey
}
