package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragquota"
	"github.com/poiesic/ragquota/ai"
	"github.com/urfave/cli/v2"
)

// openService builds a Service from the command's flags.
// Tests replace it to inject a mock embedding provider.
var openService = func(c *cli.Context) (*ragquota.Service, error) {
	config, err := configFromFlags(c)
	if err != nil {
		return nil, err
	}
	return ragquota.Open(config)
}

func configFromFlags(c *cli.Context) (*ragquota.Config, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithToken(c.String("embedding-token")),
	)

	opts := []ragquota.ConfigOption{
		ragquota.WithDataDir(c.String("db")),
		ragquota.WithCapacityLimit(c.Int("capacity")),
		ragquota.WithRetentionDays(c.Int("retention-days")),
		ragquota.WithChunkSize(c.Int("chunk-size")),
		ragquota.WithContextTopK(c.Int("context-top-k")),
		ragquota.WithAIConfig(aiConfig),
	}
	if c.IsSet("sweep-interval") {
		opts = append(opts, ragquota.WithSweepInterval(c.Duration("sweep-interval")))
	}

	switch backend := ragquota.VectorBackend(strings.ToLower(c.String("vector-backend"))); backend {
	case ragquota.BackendBadger:
	case ragquota.BackendQdrant:
		opts = append(opts, ragquota.WithQdrant(
			c.String("qdrant-endpoint"),
			c.String("qdrant-collection"),
			c.Int("qdrant-dimension"),
		))
	default:
		return nil, fmt.Errorf("invalid vector backend %q: must be one of badger, qdrant", backend)
	}

	config := ragquota.NewConfig(opts...)
	slog.Debug("configuration loaded",
		"db", config.DataDir,
		"capacity", config.CapacityLimit,
		"backend", config.VectorBackend,
		"embeddingModel", aiConfig.EmbeddingModel)
	return config, nil
}
