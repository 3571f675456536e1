package main

import (
	"context"
	"errors"
	"os"

	"marketplace-monitor/config"
	"marketplace-monitor/monitor"
	"marketplace-monitor/notify"
	"marketplace-monitor/scraper/facebook"
	"marketplace-monitor/storage"
	"marketplace-monitor/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(os.Getenv("VERBOSE_LOGGING") == "true")

	logger.Info("=== Marketplace Monitor starting ===")
	logger.Info("Config — partitions: %d regions × %d queries | price band: $%.0f–$%.0f | concurrency: %d",
		len(cfg.Regions), len(cfg.Queries), cfg.MinPrice, cfg.MaxPrice, cfg.MaxConcurrency)

	store, err := storage.NewJSONStore(cfg.DataDir, cfg.RetentionDays, logger)
	if err != nil {
		logger.Error("Failed to open snapshot store: %v", err)
		os.Exit(1)
	}

	notifier := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.IncludeKeywords, logger)

	scraper, err := facebook.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to start scraper: %v", err)
		os.Exit(1)
	}
	defer scraper.Close()

	mon := monitor.New(cfg, scraper, store, notifier, logger)

	if cfg.PostgresEnabled {
		archiver, err := storage.NewPostgresArchiver(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			os.Exit(1)
		}
		defer archiver.Close()
		mon.Archiver = archiver
	}

	if cfg.CSVOutputPath != "" {
		exporter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			os.Exit(1)
		}
		mon.Exporter = exporter
	}

	if err := mon.RunCycle(context.Background()); err != nil {
		if errors.Is(err, monitor.ErrEmptyCycle) {
			logger.Warn("Cycle finished without data — previous snapshot kept")
			return
		}
		logger.Error("Monitor cycle failed: %v", err)
		os.Exit(1)
	}

	logger.Info("=== Cycle complete ===")
}
