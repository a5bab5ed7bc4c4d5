package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/modfusion-console/internal/config"
	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/handler"
	"github.com/msomdec/modfusion-console/internal/metrics"
	"github.com/msomdec/modfusion-console/internal/repository/memory"
	"github.com/msomdec/modfusion-console/internal/repository/redisstore"
	"github.com/msomdec/modfusion-console/internal/repository/sqlite"
	"github.com/msomdec/modfusion-console/internal/service"
)

const tokenTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	readyChecks := map[string]handler.CheckFunc{
		"sqlite": db.SqlDB.PingContext,
	}

	var codeStore domain.CodeStore = memory.NewCodeStore()
	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		codeStore = redisstore.NewCodeStore(client, "")
		readyChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		slog.Info("verification codes stored in redis", "addr", cfg.Redis.Addr)
	}

	var sender domain.CodeSender = service.LogSender{}
	if cfg.SMTP.Host != "" {
		sender = service.NewSMTPSender(service.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.User,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			RequireTLS: cfg.SMTP.RequireTLS,
		})
	} else {
		slog.Warn("SMTP_HOST not set, verification codes will be written to the log")
	}
	if cfg.AdminCode == "" {
		slog.Warn("ADMIN_CODE not set, admin promotion by code is disabled")
	}

	reg := metrics.NewRegistry()
	authMetrics := metrics.NewAuth(reg)

	store := service.NewIdentityStore(db.Users(), db.Sessions(), db.Activity(), cfg.AdminCode, cfg.BcryptCost)
	codes := service.NewCodeIssuer(codeStore, sender, service.CodeOptions{
		TTL:         cfg.Verification.CodeTTL,
		MaxAttempts: cfg.Verification.MaxAttempts,
	})
	auth, err := service.NewAuthController(ctx, store, codes, service.ControllerOptions{
		VerifyOnRegister: cfg.Verification.OnRegister,
		Metrics:          authMetrics,
	})
	if err != nil {
		slog.Error("failed to load session", "error", err)
		os.Exit(1)
	}
	defer auth.Close()

	limiter := service.NewRateLimiter(service.PerMinute(cfg.RateLimit.PerMinute), cfg.RateLimit.Burst)
	defer limiter.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Services{
		Auth:           auth,
		Store:          store,
		Tokens:         service.NewTokenService(cfg.JWTSecret, tokenTTL),
		Avatars:        service.NewAvatarService(db.FileStore()),
		Limiter:        limiter,
		Metrics:        authMetrics,
		MetricsHandler: metrics.Handler(reg),
		ReadyChecks:    readyChecks,
		CookieSecure:   cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr,
			"verify_on_register", cfg.Verification.OnRegister,
			"code_ttl", cfg.Verification.CodeTTL.String(),
			"rate_per_minute", cfg.RateLimit.PerMinute)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
