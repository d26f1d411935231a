package main

import (
	"context"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/capso-ai/capso/internal/account"
	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/audioproc"
	"github.com/capso-ai/capso/internal/audit"
	"github.com/capso-ai/capso/internal/auth"
	"github.com/capso-ai/capso/internal/billing"
	"github.com/capso-ai/capso/internal/config"
	"github.com/capso-ai/capso/internal/database"
	"github.com/capso-ai/capso/internal/extract"
	"github.com/capso-ai/capso/internal/generation"
	mw "github.com/capso-ai/capso/internal/middleware"
	inats "github.com/capso-ai/capso/internal/nats"
	iredis "github.com/capso-ai/capso/internal/redis"
	"github.com/capso-ai/capso/internal/server"
	"github.com/capso-ai/capso/internal/speech"
	"github.com/capso-ai/capso/internal/summarize"
	"github.com/capso-ai/capso/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional). Events degrade to log-only when disabled.
	var natsClient *inats.Client
	var publisher *inats.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = inats.NewPublisher(natsClient.JetStream())

		consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
		auditConsumer := audit.NewConsumer(audit.NewRepository(pool), consumerMgr)
		go func() {
			if err := auditConsumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Summarization and speech providers
	var chat summarize.ChatClient
	if cfg.OpenAIConfigured() {
		chat = openai.NewClient(cfg.OpenAI.APIKey)
	} else {
		slog.Warn("OpenAI key missing, summarization disabled")
	}
	summarizer := summarize.NewService(chat, cfg.OpenAI.Model)

	var synth speech.Synthesizer
	if cfg.TTSConfigured() {
		synth = speech.NewClient(cfg.TTS)
	} else {
		slog.Warn("TTS key missing, speech synthesis disabled")
	}

	// Audio post-processing
	locator := audioproc.NewLocator(cfg.Audio.FFmpegPath, cfg.Audio.FFmpegAltPath, cfg.Audio.ScratchDir)
	processor := audioproc.NewProcessor(audioproc.NewExecutor(), locator, cfg.Audio, cfg.Server.PublicURL)

	// Generation pipeline
	genRepo := generation.NewRepository(pool)
	gate := generation.NewGate(genRepo, cfg.Limits.StarterMonthly)
	genSvc := generation.NewService(gate, extract.NewExtractor(), summarizer, synth, processor, genRepo, publisher)
	genHandler := generation.NewHandler(genSvc, gate, userSvc, cfg.Limits.MaxUploadBytes, cfg.Server.PublicURL)

	// Billing
	billingSvc := billing.NewService(userSvc, publisher, cfg.Stripe)
	billingHandler := billing.NewHandler(billingSvc, cfg.Stripe.WebhookSecret)

	// Account management
	accountHandler := account.NewHandler(userSvc, genRepo, authSvc)

	// Rate limiting on the auth endpoints
	authLimiter := mw.NewRateLimiter(redisClient, cfg.Limits.AuthRateMax, cfg.Limits.AuthRateWindow)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Generate:        genHandler.Generate,
		GenerateSummary: genHandler.GenerateSummary,
		ExtractText:     genHandler.ExtractText,
		Usage:           genHandler.Usage,
		History:         genHandler.History,
		Download:        genHandler.Download,

		CreateCheckoutSession: billingHandler.CreateCheckoutSession,
		VerifyCheckoutSession: billingHandler.VerifyCheckoutSession,
		CreatePortalSession:   billingHandler.CreatePortalSession,
		StripeWebhook:         billingHandler.StripeWebhook,

		Profile:             accountHandler.Profile,
		UpdateProfile:       accountHandler.UpdateProfile,
		Notifications:       accountHandler.Notifications,
		UpdateNotifications: accountHandler.UpdateNotifications,
		ExportData:          accountHandler.ExportData,
		DeleteAccount:       accountHandler.DeleteAccount,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
