package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stwalsh4118/cinema/internal/config"
	"github.com/stwalsh4118/cinema/internal/db"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/server"
	"github.com/stwalsh4118/cinema/internal/world"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Cinema server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.Open(cfg.Database.Path, db.Options{
		EnableWAL:   cfg.Database.EnableWAL,
		PingTimeout: cfg.Database.ConnectionTimeout,
	})
	if err != nil {
		return err
	}
	defer database.Close()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return err
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		return err
	}
	logger.Log.Info().Str("path", cfg.Database.Path).Msg("Database ready")

	srv, err := server.New(cfg, database, world.New(), seedDemo)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutdown signal received")
	case serveErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return serveErr
}
