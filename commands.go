package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/ingestion"
	"github.com/parlamentwatch/member-ingestion-service/internal/logging"
	"github.com/parlamentwatch/member-ingestion-service/internal/roster"
	"github.com/parlamentwatch/member-ingestion-service/internal/storage"
	"github.com/parlamentwatch/member-ingestion-service/internal/upstream"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:          "member-ingestion-service",
		Short:        "Imports Austrian parliament members and serves them over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFiles)
		},
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env, .env.local)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional ingestion schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFiles)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ingest",
		Short: "Run a single ingestion and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestOnce(cmd.Context(), envFiles)
		},
	})
	return cmd
}

type app struct {
	config  *config.Config
	logger  *logrus.Logger
	store   storage.Storage
	service *ingestion.Service
}

func bootstrap(ctx context.Context, envFiles []string) (*app, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(cfg.Log)

	layout := roster.DefaultLayout
	if cfg.Ingestion.LayoutFile != "" {
		if layout, err = roster.LoadLayout(cfg.Ingestion.LayoutFile); err != nil {
			return nil, err
		}
	}
	decoder, err := roster.NewDecoder(cfg.Ingestion.Decoder)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := upstream.NewClient(cfg.Upstream, logger)
	parser := roster.NewParser(layout, decoder, client.BaseURL())

	return &app{
		config:  cfg,
		logger:  logger,
		store:   store,
		service: ingestion.NewService(cfg.Ingestion, client, parser, store, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close storage")
	}
}
