package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/footfall/internal/api"
	"github.com/timmy/footfall/internal/app"
	"github.com/timmy/footfall/internal/config"
	"github.com/timmy/footfall/internal/domain"
	"github.com/timmy/footfall/internal/logger"
)

func main() {
	log := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize console")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("Shutdown left resources open")
		}
	}()

	// Pick up a job a previous run was tracking
	if resumed, err := a.Jobs.Resume(ctx); err != nil {
		log.WithError(err).Warn("Could not resume the persisted job; it stays stored for the next start")
	} else if resumed {
		log.WithField(logger.FieldJobID, a.Jobs.Snapshot().JobID).Info("Resumed job from previous session")
	}

	if err := a.History.Watch(ctx, func(jobs []domain.Job) {
		log.WithField(logger.FieldCount, len(jobs)).Debug("History updated")
	}); err != nil {
		log.WithError(err).Warn("History will not refresh on job events")
	}

	router := api.SetupRouter(api.Deps{
		Wizard:   a.Wizard,
		Intake:   a.Intake,
		Jobs:     a.Jobs,
		SubRange: a.SubRange,
		History:  a.History,
		Bus:      a.Bus,
	}, &cfg.Server, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logger.Fields{
			"port":    cfg.Server.Port,
			"mode":    cfg.Server.Mode,
			"notify":  cfg.Notify.Backend,
			"origin":  a.Origin,
			"service": cfg.JobService.BaseURL,
		}).Info("Starting console API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	// event streams end with the base context
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
