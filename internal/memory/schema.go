package memory

import (
	"context"
	"fmt"
	"log/slog"
)

// EnsureSchema creates the pgvector extension, the memories table, and its
// indexes if they do not already exist. dim is the embedding vector size and
// must match the configured embedding model. Safe to run repeatedly.
func EnsureSchema(ctx context.Context, db Querier, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("memory: invalid embedding dimension %d", dim)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			memory_text TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('preference', 'fact', 'task', 'insight')),
			tag TEXT NOT NULL,
			importance DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (importance >= 0 AND importance <= 3),
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (confidence >= 0 AND confidence <= 1),
			source TEXT,
			embedding vector(%d) NOT NULL,
			embedding_model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_accessed TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			access_count INTEGER NOT NULL DEFAULT 0
		)`, tableName, dim),

		// Approximate nearest-neighbor index for the semantic path.
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			tableName, tableName),

		// Full-text index for the lexical path.
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_text_idx
			ON %s USING gin (to_tsvector('english', memory_text))`,
			tableName, tableName),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tag_idx ON %s (tag)`, tableName, tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_type_idx ON %s (type)`, tableName, tableName),
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("memory: apply schema: %w", err)
		}
	}

	slog.Info("memory schema ensured", "table", tableName, "dimensions", dim)
	return nil
}
