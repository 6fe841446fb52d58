package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filevault/backend/internal/app"
	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting file vault",
		zap.String("dbDriver", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Backend),
	)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.Driver); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, db, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	// Create the default admin on first run
	if err := application.Bootstrap(ctx); err != nil {
		logger.Logger.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	// Remove stored bytes left behind by failed deletes
	maintenance, err := application.StartMaintenance(ctx)
	if err != nil {
		logger.Logger.Fatal("Failed to start orphan sweep", zap.Error(err))
	}

	// Start server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if maintenance != nil {
		maintenance.Stop()
	}

	logger.Logger.Info("Server exited")
}
