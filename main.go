package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parlamentwatch/member-ingestion-service/internal/server"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, envFiles []string) error {
	a, err := bootstrap(ctx, envFiles)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.logger

	// Initialize HTTP server for API endpoints
	httpServer, err := server.NewServer(a.config.Server, a.store, a.service, log)
	if err != nil {
		return err
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server
	go func() {
		log.WithField("port", a.config.Server.Port).Info("Starting HTTP server")
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	// Start scheduled ingestion, if configured
	go func() {
		if err := a.service.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Ingestion service error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}

	cancel() // Cancel ingestion context
	log.Info("Shutdown complete")
	return nil
}

func ingestOnce(ctx context.Context, envFiles []string) error {
	a, err := bootstrap(ctx, envFiles)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.service.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"session_id": result.SessionID,
		"members":    result.ProcessedMembers,
		"details":    result.DetailedDataFetched,
		"failed":     result.DetailedDataFailed,
	}).Info("Ingestion complete")
	return nil
}
