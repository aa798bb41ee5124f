package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hszk-dev/tubelytics/internal/app"
	"github.com/hszk-dev/tubelytics/internal/config"
	"github.com/hszk-dev/tubelytics/internal/dispatch"
	"github.com/hszk-dev/tubelytics/internal/domain/repository"
	"github.com/hszk-dev/tubelytics/internal/infrastructure/queue"
	"github.com/hszk-dev/tubelytics/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close app", slog.Any("error", err))
		}
	}()

	queueClient, err := queue.NewClient(ctx, queue.ClientConfig{
		URL:       cfg.RabbitMQ.URL(),
		QueueName: cfg.RabbitMQ.QueueName,
		Prefetch:  cfg.RabbitMQ.Prefetch,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ", slog.String("queue", cfg.RabbitMQ.QueueName))

	router := dispatch.NewRouter(a.Supervisor, dispatch.RouterConfig{Timeout: cfg.Dispatch.Timeout}, logger)

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track deliveries being handed to the router
	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming client requests")
		err := queueClient.ConsumeRequests(ctx, func(d repository.Delivery) {
			handleDelivery(ctx, router, d, &wg, logger)
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	var runErr error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	case err := <-a.Supervisor.Fatal():
		logger.Error("worker supervisor gave up, shutting down", slog.Any("error", err))
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming new messages; in-flight requests keep their own deadlines.
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		router.Close()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight requests completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some requests may not have been answered")
	}

	logger.Info("worker stopped")
	return runErr
}

// handleDelivery submits one broker message to the router. Requests without
// a reply queue that cannot be decoded are rejected instead of answered.
func handleDelivery(ctx context.Context, router *dispatch.Router, d repository.Delivery, wg *sync.WaitGroup, logger *slog.Logger) {
	if d.ReplyTo() == "" {
		if _, err := dispatch.Decode(d.Body()); err != nil {
			logger.Warn("rejecting malformed request without reply queue",
				slog.String("correlation_id", d.CorrelationID()),
				slog.Any("error", err),
			)
			_ = d.Reject()
			return
		}
	}

	// Replies emitted inside Submit are covered by wg; dispatched ones by router.Close.
	wg.Add(1)
	defer wg.Done()
	router.Submit(context.WithoutCancel(ctx), d.Body(), dispatch.OriginatorFunc(func(msg []byte) error {
		return d.Reply(context.WithoutCancel(ctx), msg)
	}))
}
