package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hermesagent/hermes/internal/config"
	"github.com/hermesagent/hermes/internal/embedding"
	"github.com/hermesagent/hermes/internal/memory"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the memory schema (table, vector index, text-search index)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings := config.LoadSettings()
			if settings.DatabaseURL == "" {
				return fmt.Errorf("MEMORY_DB_URL is not set")
			}

			dim := embedding.DimensionFor(settings.EmbeddingModel, settings.EmbeddingDim)

			pool, err := pgxpool.New(ctx, settings.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

			if err := memory.EnsureSchema(ctx, pool, dim); err != nil {
				return err
			}

			fmt.Printf("Memory schema ready (model %s, %d dimensions)\n", settings.EmbeddingModel, dim)
			return nil
		},
	}
}
