package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/batch"
	"github.com/groblegark/auditstore/internal/listener"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Consume events from NATS and store them in batches",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return fmt.Errorf("AUDITSTORE_NATS_URL is required for serve")
		}

		ctx := context.Background()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}
		if !repo.TestConnection(ctx) {
			return fmt.Errorf("repository %s is unreachable", repo.Name())
		}
		logger.Info("repository ready", "repository", repo.Name())

		writer := batch.New(repo, batch.Options{
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.BatchTimeout,
			QueueSize: cfg.QueueSize,
			Logger:    logger,
		})
		writer.Start(ctx)

		sub, err := listener.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			writer.Stop()
			return err
		}

		l := listener.New(sub, writer, listener.Options{
			Topic:             cfg.ListenTopic,
			IgnoredCategories: cfg.IgnoredCategories,
			IgnoredActions:    cfg.IgnoredActions,
			Logger:            logger,
		})
		if err := l.Start(ctx); err != nil {
			sub.Close()
			writer.Stop()
			return err
		}

		logger.Info("audit listener started",
			"nats_url", cfg.NATSURL,
			"topic", cfg.ListenTopic,
			"batch_size", cfg.BatchSize,
			"batch_timeout", cfg.BatchTimeout,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Stop intake first, then flush what remains.
		l.Stop()
		logger.Info("listener stopped")

		if err := sub.Close(); err != nil {
			logger.Error("closing subscriber", "err", err)
		}

		writer.Stop()
		logger.Info("batch writer drained")

		logger.Info("shutdown complete")
		return nil
	},
}
