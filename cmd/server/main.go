// Package main is the entry point for the weekly governance engine.
// It serves the governance API and runs the weekly cycle on its cron schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/di"
	"github.com/aristath/governor/internal/scheduler"
	"github.com/aristath/governor/internal/server"
	"github.com/aristath/governor/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration and governance parameters
// 2. Wires databases, repositories, services and jobs
// 3. Starts the HTTP server and the scheduler
// 4. Waits for a shutdown signal and stops everything gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting governor")

	if err := os.MkdirAll(cfg.InboxDir, 0755); err != nil {
		log.Fatal().Err(err).Str("inbox", cfg.InboxDir).Msg("Failed to create inbox directory")
	}

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	sched := scheduler.New(log)
	if err := di.ScheduleJobs(sched, cfg, jobs); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	sched.Start()
	log.Info().
		Str("weekly_schedule", cfg.WeeklySchedule).
		Str("inbox", cfg.InboxDir).
		Bool("r2_archive", container.ArchiveService != nil).
		Msg("Weekly governance scheduled")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Waits for a running weekly cycle to finish
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
