package main

import (
	"go.uber.org/zap"

	"quoteaudit/internal/alert"
	"quoteaudit/internal/config"
	"quoteaudit/internal/repository"
	"quoteaudit/internal/server"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Telegram alerting for certification events (optional)
	notifier, err := alert.NewNotifier(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram alerting, continuing without it", zap.Error(err))
		notifier = nil
	}

	// Initialize and run the server
	srv := server.NewServer(db, cfg, notifier, logger)
	if err := srv.Run(cfg.Server.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
