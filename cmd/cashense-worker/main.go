package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashense/internal/amqp"
	"cashense/internal/config"
	"cashense/internal/core"
	"cashense/internal/log"
	"cashense/internal/store/jsonfile"
	"cashense/internal/store/sqlite"
	"cashense/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting cashense-worker", log.FieldOperation, log.OpStartup)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mirror worker")
		os.Exit(1)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = jsonfile.DefaultDataDir()
		if err != nil {
			logger.Error("Failed to resolve data directory", log.FieldError, err)
			os.Exit(1)
		}
	}

	primary, err := jsonfile.Open(dataDir)
	if err != nil && !errors.Is(err, core.ErrCorruptData) {
		logger.Error("Failed to open cashbook store", log.FieldError, err, log.FieldDataDir, dataDir)
		os.Exit(1)
	}
	if err != nil {
		logger.Warn("Cashbook file was corrupted and has been recovered", log.FieldError, err)
	}
	defer primary.Close()

	archive, err := sqlite.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open sqlite archive", log.FieldError, err, "db_path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer archive.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirror := worker.NewMirrorWorker(primary, archive)

	go func() {
		err := amqpClient.ConsumeCashbookChanges(ctx, func(msg *amqp.CashbookChangeMessage) error {
			return mirror.HandleChange(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give the in-flight message a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
