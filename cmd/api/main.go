package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/tubelytics/internal/api/handler"
	"github.com/hszk-dev/tubelytics/internal/api/middleware"
	"github.com/hszk-dev/tubelytics/internal/app"
	"github.com/hszk-dev/tubelytics/internal/config"
	"github.com/hszk-dev/tubelytics/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, syncLog := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})
	defer func() { _ = syncLog() }()
	slog.SetDefault(logger)

	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close app", slog.Any("error", err))
		}
	}()

	r := setupRouter(logger, a, cfg.Dispatch)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	case err := <-a.Supervisor.Fatal():
		logger.Error("worker supervisor gave up, shutting down", slog.Any("error", err))
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return runErr
}

func setupRouter(logger *slog.Logger, a *app.App, dcfg config.DispatchConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health(a.Supervisor))
	r.Handle("/metrics", promhttp.Handler())

	sessionHandler := handler.NewSessionHandler(a.Sessions)
	wsHandler := handler.NewWSHandler(a.Sessions, a.Supervisor, handler.WSConfig{
		Timeout: dcfg.Timeout,
	}, logger)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", sessionHandler.Create)
		r.Get("/sessions/{id}/searches", sessionHandler.Searches)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	return r
}
