package main

import (
	"context"
	"log/slog"

	"github.com/groblegark/auditstore/internal/config"
	"github.com/groblegark/auditstore/internal/repository"
	"github.com/groblegark/auditstore/internal/repository/cloudwatchrepo"
	"github.com/groblegark/auditstore/internal/repository/postgresrepo"
	"github.com/groblegark/auditstore/internal/repository/redisrepo"
)

// newRegistry wires the built-in backends. Construction is lazy, so
// registering a backend whose settings are absent costs nothing until
// it is resolved.
func newRegistry(cfg *config.Config, logger *slog.Logger) *repository.Registry {
	reg := repository.NewRegistry()

	reg.Register(redisrepo.Name, func(ctx context.Context) (repository.Repository, error) {
		return redisrepo.Open(ctx, cfg.RedisAddr)
	})

	reg.Register(postgresrepo.Name, func(ctx context.Context) (repository.Repository, error) {
		return postgresrepo.New(cfg.DatabaseURL)
	})

	reg.Register(cloudwatchrepo.Name, func(ctx context.Context) (repository.Repository, error) {
		return cloudwatchrepo.New(ctx, cloudwatchrepo.Options{
			LogGroup:  cfg.CloudWatchLogGroup,
			LogStream: cfg.CloudWatchLogStream,
			Region:    cfg.CloudWatchRegion,
			AccessKey: cfg.CloudWatchAccessKey,
			SecretKey: cfg.CloudWatchSecretKey,
			Logger:    logger,
		})
	})

	return reg
}
