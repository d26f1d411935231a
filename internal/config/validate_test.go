package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, PublicURL: "http://localhost:8080"},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "capso",
			Password: "secret", Name: "capso", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT: JWTConfig{
			AccessSecret:  "access-secret-that-is-at-least-32-chars!",
			RefreshSecret: "refresh-secret-that-is-at-least-32-chr!",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
		},
		OpenAI: OpenAIConfig{APIKey: "sk-real-key", Model: "gpt-4o-mini"},
		TTS:    TTSConfig{URL: "https://api.lemonfox.ai/v1/audio/speech", APIKey: "tts-key"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTAccessSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_JWTSecretsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.RefreshSecret = cfg.JWT.AccessSecret
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected secrets-must-differ error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Fatalf("expected SERVER_PORT error, got: %v", err)
	}
}

func TestOpenAIConfigured(t *testing.T) {
	cfg := validConfig()
	if !cfg.OpenAIConfigured() {
		t.Fatal("expected configured")
	}
	cfg.OpenAI.APIKey = placeholderOpenAIKey
	if cfg.OpenAIConfigured() {
		t.Fatal("placeholder key must count as not configured")
	}
	cfg.OpenAI.APIKey = ""
	if cfg.OpenAIConfigured() {
		t.Fatal("empty key must count as not configured")
	}
}

func TestTTSConfigured(t *testing.T) {
	cfg := validConfig()
	if !cfg.TTSConfigured() {
		t.Fatal("expected configured")
	}
	cfg.TTS.APIKey = placeholderTTSKey
	if cfg.TTSConfigured() {
		t.Fatal("placeholder key must count as not configured")
	}
}
