package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Env    string
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	NATS   NATSConfig
	JWT    JWTConfig
	OpenAI OpenAIConfig
	TTS    TTSConfig
	Stripe StripeConfig
	Audio  AudioConfig
	Limits LimitsConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// PublicURL is the externally reachable origin, used for synthetic
	// download URLs and as the music-asset download fallback origin.
	PublicURL string

	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type TTSConfig struct {
	URL    string
	APIKey string
	// SupportsSpeed reports whether the remote API applies the speed
	// parameter itself. When false, speed is applied locally with ffmpeg.
	SupportsSpeed bool
	Timeout       time.Duration
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	PriceIDProMonthly string
	FrontendURL       string
}

type AudioConfig struct {
	// FFmpegPath and FFmpegAltPath are bundled-binary locations tried
	// before falling back to the system PATH.
	FFmpegPath    string
	FFmpegAltPath string
	MusicDirs     []string
	ScratchDir    string
	MixTimeout    time.Duration
}

type LimitsConfig struct {
	StarterMonthly int
	MaxUploadBytes int64
	AuthRateMax    int
	AuthRateWindow int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Env: k.String("app.env"),
		Server: ServerConfig{
			Host:      k.String("server.host"),
			Port:      k.Int("server.port"),
			PublicURL: k.String("server.public.url"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		OpenAI: OpenAIConfig{
			APIKey: k.String("openai.api.key"),
			Model:  k.String("openai.model"),
		},
		TTS: TTSConfig{
			URL:           k.String("tts.api.url"),
			APIKey:        k.String("tts.api.key"),
			SupportsSpeed: true,
		},
		Stripe: StripeConfig{
			SecretKey:         k.String("stripe.secret.key"),
			WebhookSecret:     k.String("stripe.webhook.secret"),
			PriceIDProMonthly: k.String("stripe.price.pro.monthly"),
			FrontendURL:       k.String("stripe.frontend.url"),
		},
		Audio: AudioConfig{
			FFmpegPath:    k.String("audio.ffmpeg.path"),
			FFmpegAltPath: k.String("audio.ffmpeg.alt.path"),
			ScratchDir:    k.String("audio.scratch.dir"),
		},
		Limits: LimitsConfig{
			StarterMonthly: k.Int("limits.starter.monthly"),
			MaxUploadBytes: k.Int64("limits.max.upload.bytes"),
			AuthRateMax:    k.Int("limits.auth.rate.max"),
			AuthRateWindow: k.Int("limits.auth.rate.window"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if k.Exists("tts.supports.speed") {
		cfg.TTS.SupportsSpeed = k.Bool("tts.supports.speed")
	}
	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSAllowedOrigins = append(cfg.Server.CORSAllowedOrigins, o)
			}
		}
	}
	if dirs := k.String("audio.music.dirs"); dirs != "" {
		cfg.Audio.MusicDirs = nil
		for _, d := range strings.Split(dirs, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.Audio.MusicDirs = append(cfg.Audio.MusicDirs, d)
			}
		}
	}

	// Apply defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:8080"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "capso"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "capso"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.TTS.URL == "" {
		cfg.TTS.URL = "https://api.lemonfox.ai/v1/audio/speech"
	}
	if cfg.TTS.Timeout == 0 {
		cfg.TTS.Timeout = 2 * time.Minute
	}
	if len(cfg.Audio.MusicDirs) == 0 {
		cfg.Audio.MusicDirs = []string{"assets/background-music", "public/background-music"}
	}
	if cfg.Audio.MixTimeout == 0 {
		cfg.Audio.MixTimeout = 30 * time.Second
	}
	if cfg.Limits.StarterMonthly == 0 {
		cfg.Limits.StarterMonthly = 4
	}
	if cfg.Limits.MaxUploadBytes == 0 {
		cfg.Limits.MaxUploadBytes = 50 << 20
	}
	if cfg.Limits.AuthRateMax == 0 {
		cfg.Limits.AuthRateMax = 10
	}
	if cfg.Limits.AuthRateWindow == 0 {
		cfg.Limits.AuthRateWindow = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	if mixStr := k.String("audio.mix.timeout"); mixStr != "" {
		cfg.Audio.MixTimeout, err = time.ParseDuration(mixStr)
		if err != nil {
			return nil, fmt.Errorf("parsing audio mix timeout: %w", err)
		}
	}

	if ttsTimeoutStr := k.String("tts.timeout"); ttsTimeoutStr != "" {
		cfg.TTS.Timeout, err = time.ParseDuration(ttsTimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("parsing tts timeout: %w", err)
		}
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production hardening
// (error responses omit stack detail).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
