package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/app"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/ui"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	services, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = services.Session.Close() }()

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(api.CheckOracle(services.Oracle)),
		DependencyTimeout: 2 * time.Second,
		Session:           services.Session,
		UI:                ui.NewHandler(services.Session, cfg.UI, logger).Routes(),
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("oracle", cfg.Oracle.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
