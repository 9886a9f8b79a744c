package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/mergington/internal/api"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/logging"
	"example.com/mergington/internal/outbox"
	"example.com/mergington/internal/persistence"
	httptransport "example.com/mergington/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := persistence.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger), outbox.WithRetryBaseDelay(cfg.DLQBaseDelay))
		go dispatcher.Start(ctx)
	}

	service := domain.NewService(backend.Store, domain.WithLogger(logger))

	handler := api.NewHandler(service, staticFS(cfg.StaticDir, logger))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.RequestID,
		httptransport.Logger(logger),
		httptransport.Metrics,
		httptransport.CORS(cfg.CORSOrigin),
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("activities api listening", "address", cfg.HTTPAddress, "driver", cfg.StorageDriver, "outbox", cfg.OutboxEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info("shutdown requested")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}

// staticFS returns nil when dir is missing so /static is not routed.
func staticFS(dir string, logger *slog.Logger) fs.FS {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logger.Warn("static directory unavailable, front-end disabled", "dir", dir)
		return nil
	}
	return os.DirFS(dir)
}
