// Package memory implements durable semantic memory over PostgreSQL with
// pgvector. Retrieval is hybrid: cosine-similarity over embeddings or
// full-text ranking, both boosted multiplicatively by the row's importance.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/hermesagent/hermes/internal/ratelimit"
)

const tableName = "agent_memories"

// defaultProbes is the ivfflat probe count set for every recall query. More
// probes trade latency for recall accuracy on the approximate index.
const defaultProbes = 20

// Write and read paths are rate limited independently.
const (
	rememberMaxCalls = 10
	recallMaxCalls   = 20
	limitPeriod      = time.Minute
)

// Querier abstracts the pgx query methods the store needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so tests can inject a mock and
// production injects the pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxQuerier extends Querier with transaction support. *pgxpool.Pool
// satisfies it but pgx.Tx does not. Recall attempts a type assertion to
// TxQuerier so the SELECT and the access-tracking UPDATE commit atomically,
// and falls back to a non-atomic path when only Querier is available.
type TxQuerier interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Embedder produces vectors for memory text. Embed may serve from a cache;
// EmbedFresh always calls the provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedFresh(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Store is the semantic memory store. Reads degrade softly: database
// failures log and return empty results, never errors. Validation and rate
// limiting fail loudly before any I/O.
type Store struct {
	db       Querier
	embedder Embedder
	probes   int

	rememberLimit *ratelimit.Window
	recallLimit   *ratelimit.Window

	// pool is set only when the store owns its connections (Connect).
	pool *pgxpool.Pool
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithProbes overrides the ivfflat probe count used during recall.
func WithProbes(probes int) Option {
	return func(s *Store) {
		if probes > 0 {
			s.probes = probes
		}
	}
}

// New creates a store over an existing query executor. Used directly by
// tests; production code goes through Connect.
func New(db Querier, embedder Embedder, opts ...Option) *Store {
	s := &Store{
		db:            db,
		embedder:      embedder,
		probes:        defaultProbes,
		rememberLimit: ratelimit.NewWindow(rememberMaxCalls, limitPeriod),
		recallLimit:   ratelimit.NewWindow(recallMaxCalls, limitPeriod),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect establishes a bounded connection pool (1..5 connections), pings it
// eagerly, and returns a store owning the pool. Any failure here is a fatal
// configuration error for the caller.
func Connect(ctx context.Context, connString string, embedder Embedder, opts ...Option) (*Store, error) {
	if connString == "" {
		return nil, fmt.Errorf("memory: connection string is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder is required")
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("memory: parse connection string: %w", err)
	}
	config.MinConns = 1
	config.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("memory: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: ping database: %w", err)
	}

	slog.Info("memory store connected", "min_conns", config.MinConns, "max_conns", config.MaxConns)

	s := New(pool, embedder, opts...)
	s.pool = pool
	return s, nil
}

// Close releases the owned connection pool. Idempotent; a no-op for stores
// built over an injected Querier.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
		slog.Info("memory store closed")
	}
}

const memoryColumns = `id, memory_text, type, tag, importance, confidence,
	source, created_at, last_accessed, access_count, embedding_model`

// Remember validates and stores a new memory, returning the generated id.
// Validation, rate-limit, and embedding failures return an error before or
// instead of touching the database. Database failures are soft: they log and
// return id 0 with a nil error, which callers must treat as "not stored".
func (s *Store) Remember(ctx context.Context, p RememberParams) (int64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	if err := s.rememberLimit.Allow(); err != nil {
		return 0, fmt.Errorf("memory: remember: %w", err)
	}

	// Write path embeds fresh so the stored vector always reflects the
	// provider's current output.
	vec, err := s.embedder.EmbedFresh(ctx, p.Text)
	if err != nil {
		return 0, fmt.Errorf("memory: embed text: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(memory_text, type, tag, importance, confidence, source, embedding, embedding_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`, tableName)

	var source *string
	if p.Source != "" {
		source = &p.Source
	}

	var id int64
	err = s.db.QueryRow(ctx, query,
		p.Text, p.Type, p.Tag, p.Importance, p.Confidence, source,
		pgvector.NewVector(vec), s.embedder.Model(),
	).Scan(&id)
	if err != nil {
		slog.Error("memory: failed to store memory", "error", err)
		return 0, nil
	}

	slog.Info("stored memory", "id", id, "type", p.Type, "tag", p.Tag, "text_preview", preview(p.Text))
	return id, nil
}

// Recall retrieves the memories most relevant to the query, ordered by
// importance-boosted score descending. Every returned row has its access
// counter incremented and last-accessed timestamp refreshed as part of the
// same operation. Database and embedding failures degrade to an empty list.
func (s *Store) Recall(ctx context.Context, p RecallParams) ([]Memory, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.recallLimit.Allow(); err != nil {
		return nil, fmt.Errorf("memory: recall: %w", err)
	}

	query, args, err := s.buildRecallQuery(ctx, p)
	if err != nil {
		slog.Error("memory: failed to build recall query", "error", err)
		return []Memory{}, nil
	}

	var results []Memory
	if txDB, ok := s.db.(TxQuerier); ok {
		results, err = s.recallAtomic(ctx, txDB, query, args)
	} else {
		results, err = s.recallFallback(ctx, query, args)
	}
	if err != nil {
		slog.Error("memory: failed to recall memories", "error", err)
		return []Memory{}, nil
	}

	slog.Info("recalled memories", "count", len(results), "query_preview", preview(p.Query))
	return results, nil
}

// buildRecallQuery assembles the ranked SELECT and its arguments. Semantic
// mode embeds the query (cache-eligible, it is a read); lexical mode ranks
// with ts_rank. Both apply the same importance boost so the two modes order
// rows consistently.
func (s *Store) buildRecallQuery(ctx context.Context, p RecallParams) (string, []any, error) {
	var sb strings.Builder
	var args []any

	if p.Semantic {
		vec, err := s.embedder.Embed(ctx, p.Query)
		if err != nil {
			return "", nil, fmt.Errorf("embed query: %w", err)
		}
		fmt.Fprintf(&sb, `SELECT %s,
			(1 - (embedding <=> $1::vector)) * (1 + (importance / 3.0)) AS similarity
			FROM %s WHERE 1=1`, memoryColumns, tableName)
		args = append(args, pgvector.NewVector(vec))
	} else {
		fmt.Fprintf(&sb, `SELECT %s,
			ts_rank(to_tsvector('english', memory_text), plainto_tsquery('english', $1)) * (1 + (importance / 3.0)) AS similarity
			FROM %s
			WHERE to_tsvector('english', memory_text) @@ plainto_tsquery('english', $2)`, memoryColumns, tableName)
		args = append(args, p.Query, p.Query)
	}

	if p.Type != "" {
		args = append(args, p.Type)
		fmt.Fprintf(&sb, " AND type = $%d", len(args))
	}
	if p.Tag != "" {
		args = append(args, p.Tag)
		// A % in the filter switches from exact match to a pattern match.
		if strings.Contains(p.Tag, "%") {
			fmt.Fprintf(&sb, " AND tag LIKE $%d", len(args))
		} else {
			fmt.Fprintf(&sb, " AND tag = $%d", len(args))
		}
	}
	if p.MinImportance != nil {
		args = append(args, *p.MinImportance)
		fmt.Fprintf(&sb, " AND importance >= $%d", len(args))
	}

	args = append(args, p.Limit)
	fmt.Fprintf(&sb, " ORDER BY similarity DESC LIMIT $%d", len(args))

	return sb.String(), args, nil
}

// recallAtomic runs the ranked SELECT and the access-tracking UPDATE in one
// transaction, with the ivfflat probe count scoped to it.
func (s *Store) recallAtomic(ctx context.Context, txDB TxQuerier, query string, args []any) ([]Memory, error) {
	tx, err := txDB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", s.probes)); err != nil {
		return nil, fmt.Errorf("set probes: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	results, err := scanMemories(rows, true)
	if err != nil {
		return nil, err
	}

	if err := trackAccess(ctx, tx, results); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return results, nil
}

// recallFallback runs the same statements without a transaction when the
// underlying Querier cannot begin one. The probe setting then applies to the
// session rather than one statement.
func (s *Store) recallFallback(ctx context.Context, query string, args []any) ([]Memory, error) {
	if _, err := s.db.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", s.probes)); err != nil {
		return nil, fmt.Errorf("set probes: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	results, err := scanMemories(rows, true)
	if err != nil {
		return nil, err
	}

	if err := trackAccess(ctx, s.db, results); err != nil {
		return nil, err
	}
	return results, nil
}

// trackAccess bumps access_count and last_accessed on every returned row.
func trackAccess(ctx context.Context, db Querier, results []Memory) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i, m := range results {
		ids[i] = m.ID
	}
	query := fmt.Sprintf(`UPDATE %s
		SET last_accessed = NOW(), access_count = access_count + 1
		WHERE id = ANY($1)`, tableName)
	if _, err := db.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("track access: %w", err)
	}
	return nil
}

// Forget deletes the memory with the given id and reports whether a row was
// actually removed. Database errors log and report false.
func (s *Store) Forget(ctx context.Context, id int64) bool {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", tableName)
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		slog.Error("memory: failed to delete memory", "id", id, "error", err)
		return false
	}
	deleted := tag.RowsAffected() > 0
	if deleted {
		slog.Info("deleted memory", "id", id)
	} else {
		slog.Warn("memory not found", "id", id)
	}
	return deleted
}

// ListMemories returns a page of memories ordered by creation time
// descending, optionally filtered by tag and type. Database errors degrade
// to an empty list.
func (s *Store) ListMemories(ctx context.Context, p ListParams) ([]Memory, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE 1=1", memoryColumns, tableName)

	if p.Tag != "" {
		args = append(args, p.Tag)
		fmt.Fprintf(&sb, " AND tag = $%d", len(args))
	}
	if p.Type != "" {
		args = append(args, p.Type)
		fmt.Fprintf(&sb, " AND type = $%d", len(args))
	}
	args = append(args, p.Limit, p.Offset)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		slog.Error("memory: failed to list memories", "error", err)
		return []Memory{}, nil
	}
	results, err := scanMemories(rows, false)
	if err != nil {
		slog.Error("memory: failed to list memories", "error", err)
		return []Memory{}, nil
	}
	return results, nil
}

// ListTags returns all distinct tags in sorted order. Database errors
// degrade to an empty list.
func (s *Store) ListTags(ctx context.Context) []string {
	query := fmt.Sprintf("SELECT DISTINCT tag FROM %s ORDER BY tag", tableName)
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		slog.Error("memory: failed to list tags", "error", err)
		return []string{}
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			slog.Error("memory: failed to scan tag", "error", err)
			return []string{}
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		slog.Error("memory: failed to iterate tags", "error", err)
		return []string{}
	}
	if tags == nil {
		return []string{}
	}
	return tags
}

// Stats returns store-wide aggregates plus a per-type count. Returns nil on
// database errors.
func (s *Store) Stats(ctx context.Context) *Stats {
	aggregateQuery := fmt.Sprintf(`SELECT
		COUNT(*) AS total_memories,
		COUNT(DISTINCT type) AS total_types,
		COUNT(DISTINCT tag) AS total_tags,
		AVG(confidence) AS avg_confidence,
		AVG(importance) AS avg_importance,
		MAX(created_at) AS last_memory_at
		FROM %s`, tableName)

	var stats Stats
	err := s.db.QueryRow(ctx, aggregateQuery).Scan(
		&stats.TotalMemories, &stats.TotalTypes, &stats.TotalTags,
		&stats.AvgConfidence, &stats.AvgImportance, &stats.LastMemoryAt,
	)
	if err != nil {
		slog.Error("memory: failed to get stats", "error", err)
		return nil
	}

	typeQuery := fmt.Sprintf("SELECT type, COUNT(*) AS count FROM %s GROUP BY type", tableName)
	rows, err := s.db.Query(ctx, typeQuery)
	if err != nil {
		slog.Error("memory: failed to get type counts", "error", err)
		return nil
	}
	defer rows.Close()

	stats.TypeCounts = make(map[string]int)
	for rows.Next() {
		var memType string
		var count int
		if err := rows.Scan(&memType, &count); err != nil {
			slog.Error("memory: failed to scan type count", "error", err)
			return nil
		}
		stats.TypeCounts[memType] = count
	}
	if err := rows.Err(); err != nil {
		slog.Error("memory: failed to iterate type counts", "error", err)
		return nil
	}
	return &stats
}

// scanMemories reads rows into Memory values. withScore controls whether the
// trailing similarity column is expected.
func scanMemories(rows pgx.Rows, withScore bool) ([]Memory, error) {
	defer rows.Close()

	var results []Memory
	for rows.Next() {
		var m Memory
		var source *string
		dest := []any{
			&m.ID, &m.Text, &m.Type, &m.Tag, &m.Importance, &m.Confidence,
			&source, &m.CreatedAt, &m.LastAccessed, &m.AccessCount, &m.EmbeddingModel,
		}
		if withScore {
			dest = append(dest, &m.Similarity)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if source != nil {
			m.Source = *source
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if results == nil {
		return []Memory{}, nil
	}
	return results, nil
}

// preview shortens text for log lines.
func preview(text string) string {
	const max = 50
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
