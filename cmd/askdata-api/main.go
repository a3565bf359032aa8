package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askdata/askdata/internal/api"
	"github.com/askdata/askdata/internal/auth"
	"github.com/askdata/askdata/internal/config"
	"github.com/askdata/askdata/internal/maintenance"
	"github.com/askdata/askdata/internal/nl2sql"
	"github.com/askdata/askdata/internal/observability"
	"github.com/askdata/askdata/internal/session"
	s3store "github.com/askdata/askdata/internal/storage/s3"
)

func main() {
	writeConfig := flag.String("write-config", "", "write the effective configuration as HCL to this path and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv("askdata-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if *writeConfig != "" {
		if err := config.Export(*writeConfig, cfg); err != nil {
			slog.Error("failed to write config", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	open, err := session.OpenerForEngine(cfg.Store.Engine, logger)
	if err != nil {
		logger.Error("failed to select store engine", slog.Any("error", err))
		os.Exit(1)
	}
	completer, err := nl2sql.NewOpenAICompleter(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize text completion client", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := session.NewManager(open, completer, session.ManagerOptions{
		IdleTTL:     cfg.Session.IdleTTL,
		MaxSessions: cfg.Session.MaxSessions,
		Session: session.Options{
			PreviewRows: cfg.Store.PreviewRows,
			ReadOnly:    cfg.Query.ReadOnly,
			MaxRows:     cfg.Query.MaxRows,
			StripFences: cfg.AI.StripFences,
			Logger:      logger,
		},
	})
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("failed to close sessions", slog.Any("error", err))
		}
	}()

	deps := api.Dependencies{
		Logger:            logger,
		Sessions:          sessions,
		DependencyTimeout: time.Second,
	}
	readiness := []api.ReadinessCheck{api.CheckObjectStoreConfig(cfg)}
	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.ObjectStore = objectStore
		readiness = append(readiness, objectStore.Ping)
	}
	deps.Readiness = api.CombineReadinessChecks(readiness...)
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := &maintenance.Service{
		Sessions: sessions,
		Config:   maintenance.Config{SweepInterval: cfg.Session.SweepInterval},
		Logger:   logger,
	}
	go func() { _ = sweeper.Run(ctx) }()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("engine", cfg.Store.Engine),
			slog.String("model", completer.Model()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
