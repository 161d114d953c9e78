package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/citl-review-server/internal/api"
	"github.com/citl-review-server/internal/audit"
	"github.com/citl-review-server/internal/config"
	"github.com/citl-review-server/internal/finalize"
	"github.com/citl-review-server/internal/logging"
	"github.com/citl-review-server/internal/pipeline"
	"github.com/citl-review-server/internal/quality"
	"github.com/citl-review-server/internal/review"
	"github.com/citl-review-server/internal/workflow"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.NewLogger(cfg.Logging)

	st, err := openStore(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open artifact store")
	}
	defer st.Close()

	source := pipeline.NewClient(cfg.Pipeline, logger)

	service := workflow.NewService(
		st,
		source,
		quality.NewGate(logger, cfg.Quality),
		review.NewProtocol(logger),
		finalize.NewGate(logger),
		audit.NewRecorder(st, logger),
		logger,
	)

	server := api.NewServer(cfg.Server, cfg.Logging.Level, service, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithField("addr", cfg.Server.Host).Info("Starting clinical review server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}
