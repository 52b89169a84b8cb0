package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/config"
	"github.com/groblegark/auditstore/internal/repository"
	"github.com/groblegark/auditstore/internal/ui"
)

var (
	configPath string
	repoFlag   string
	jsonOutput bool

	cfg      *config.Config
	registry *repository.Registry
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "auditstore <command>",
	Short: "Append-mostly audit event store with pluggable backends",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		if jsonOutput || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if repoFlag != "" {
			cfg.ActiveRepo = repoFlag
		}
		registry = newRegistry(cfg, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if registry != nil {
			if err := registry.Close(); err != nil {
				logger.Error("closing repositories", "err", err)
			}
		}
	},
}

// activeRepo resolves the backend selected by flag or config.
func activeRepo(ctx context.Context) (repository.Repository, error) {
	return registry.Resolve(ctx, cfg.ActiveRepo)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("AUDITSTORE_CONFIG"), "path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "backend to use (redis, postgres, cloudwatch); overrides config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Events
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(emitCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
