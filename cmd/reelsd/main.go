// cmd/reelsd/main.go
// Package main implements the entry point for the reels service.
// It initializes all components and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/config"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/event"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/jwks"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/media"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/server"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/session"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/telemetry"
)

const (
	version         = "0.1.0"
	sessionMaxIdle  = 30 * time.Minute
	sessionSweepInt = time.Minute
)

// main is the entry point for the reels service.
// It initializes all components, starts the HTTP server, and handles graceful shutdown.
func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging for the application
	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	authEnabled := true
	if err := cfg.RequireAuth(); err != nil {
		if cfg.Env != "dev" {
			logger.Error("invalid auth configuration", "error", err)
			os.Exit(1)
		}
		logger.Warn("token authentication disabled", "reason", err)
		authEnabled = false
	}

	// Initialize OpenTelemetry
	if _, err := telemetry.InitTracer("reels-service", version, os.Stderr); err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx)
	}()

	ctx := context.Background()
	paths := docstore.Paths{AppID: cfg.AppID}

	fallback := catalog.Fallback()
	if cfg.CatalogPath != "" {
		fallback, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			logger.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	// A store that fails to open leaves the service in demo mode.
	store, err := docstore.Open(ctx, docstore.OpenConfig{
		Backend:       cfg.Store,
		DatabaseDSN:   cfg.DatabaseDSN,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("document store unavailable, serving demo feed", "error", err)
		store = nil
	} else {
		defer store.Close()
		if cfg.SeedOnEmpty {
			seed(ctx, logger, store, paths, fallback)
		}
	}

	// Initialize event publisher (NATS JetStream or no-op)
	pub := event.NewPublisher(cfg.NATSURL)
	defer pub.Close()

	var mediaClient *media.S3Client
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		mediaClient, err = media.NewS3Client(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			logger.Error("failed to initialize S3 client", "error", err)
			os.Exit(1)
		}
	}

	var verifier *jwks.Verifier
	if authEnabled {
		keys := jwks.NewClient(strings.TrimSuffix(cfg.JWTIssuer, "/") + "/.well-known/jwks.json")
		verifier = jwks.NewVerifier(keys, cfg.JWTIssuer, cfg.JWTAudience)
	}

	// Initialize identity client for token subject confirmation
	var idClient *identity.Client
	if cfg.IdentityURL != "" {
		idClient = identity.New(cfg.IdentityURL)
	}

	m := metrics.NewMetrics()
	sessions := session.NewManager(session.Options{
		Store:          store,
		Paths:          paths,
		Publisher:      pub,
		Metrics:        m,
		Logger:         logger,
		SwipeThreshold: cfg.SwipeThreshold,
		Fallback:       fallback,
	})
	defer sessions.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSessions(sweepCtx, logger, sessions)

	mux, err := server.NewMux(server.Options{
		Sessions:           sessions,
		Store:              store,
		Paths:              paths,
		Verifier:           verifier,
		Identity:           idClient,
		Media:              mediaClient,
		Metrics:            m,
		Logger:             logger,
		MaxMediaSize:       cfg.MaxMediaSize,
		AllowedMimeTypes:   cfg.AllowedMimeTypes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Error("failed to build HTTP routes", "error", err)
		os.Exit(1)
	}

	// Create HTTP server with timeout configuration
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start server in a separate goroutine
	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "demo", store == nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Handle graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server exited")
}

// seed writes the catalog when the videos collection is empty. Failures are
// logged; the feed simply starts empty.
func seed(ctx context.Context, logger *slog.Logger, store docstore.Store, paths docstore.Paths, videos []model.Video) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := catalog.Seed(ctx, store, paths, videos); err != nil {
		logger.Warn("failed to seed catalog", "error", err)
	}
}

// sweepSessions closes idle sessions until ctx is done.
func sweepSessions(ctx context.Context, logger *slog.Logger, sessions *session.Manager) {
	ticker := time.NewTicker(sessionSweepInt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(sessionMaxIdle); n > 0 {
				logger.Debug("closed idle sessions", "count", n, "open", sessions.Len())
			}
		}
	}
}
