package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// pgvector cannot build HNSW indexes above this dimension.
const maxIndexedDim = 2000

type PostgresIndex struct {
	pool       *pgxpool.Pool
	collection string
	table      string
	logger     *slog.Logger
}

var _ Index = (*PostgresIndex)(nil)

func NewPostgresIndex(ctx context.Context, connStr, collection string) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresIndex{
		pool:       pool,
		collection: collection,
		table:      pgx.Identifier{collection}.Sanitize(),
		logger:     slog.Default(),
	}, nil
}

func (p *PostgresIndex) Name() string {
	return p.collection
}

// EnsureCollection creates the table and indexes when missing. An existing
// table is used as is.
func (p *PostgresIndex) EnsureCollection(ctx context.Context, dim int) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding vector(%[2]d) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING gin (metadata);
	`, p.table, dim, pgx.Identifier{p.collection + "_metadata_idx"}.Sanitize())

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create collection %s: %w", p.collection, err)
	}

	if dim > maxIndexedDim {
		p.logger.Warn("[STORE] dimension too large for an hnsw index, searches use a sequential scan",
			"collection", p.collection, "dim", dim)
		return nil
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{p.collection + "_embedding_idx"}.Sanitize(), p.table)
	if _, err := p.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Upsert(ctx context.Context, records []Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, p.table)

	batch := &pgx.Batch{}
	for _, r := range records {
		meta, err := marshalMeta(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		batch.Queue(query, r.ID, r.Content, meta, pgvector.NewVector(r.Embedding))
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
	}
	return nil
}

func (p *PostgresIndex) Query(ctx context.Context, vec []float32, k int, filter map[string]any) ([]Hit, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}

	var filterArg any
	if len(filter) > 0 {
		f, err := marshalMeta(filter)
		if err != nil {
			return nil, err
		}
		filterArg = f
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding, embedding <=> $1 AS distance
		FROM %s
		WHERE $3::jsonb IS NULL OR metadata @> $3::jsonb
		ORDER BY embedding <=> $1
		LIMIT $2
	`, p.table)

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vec), k, filterArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			meta []byte
			emb  pgvector.Vector
		)
		if err := rows.Scan(&h.ID, &h.Content, &meta, &emb, &h.Distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &h.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", h.ID, err)
		}
		h.Embedding = emb.Slice()
		p.logger.Debug("[SEARCH] found chunk", "id", h.ID, "distance", h.Distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *PostgresIndex) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf(`SELECT id, content, metadata, embedding FROM %s WHERE id = $1`, p.table)
	records, err := p.scanRecords(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (p *PostgresIndex) Delete(ctx context.Context, ids []string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.table), ids)
	return err
}

func (p *PostgresIndex) DeleteWhere(ctx context.Context, filter map[string]any) (int, error) {
	if len(filter) == 0 {
		return 0, errors.New("refusing to delete with an empty filter")
	}
	f, err := marshalMeta(filter)
	if err != nil {
		return 0, err
	}
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE metadata @> $1::jsonb`, p.table), f)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)).Scan(&n)
	return n, err
}

func (p *PostgresIndex) Peek(ctx context.Context, n int) ([]Record, error) {
	query := fmt.Sprintf(`SELECT id, content, metadata, embedding FROM %s ORDER BY created_at LIMIT $1`, p.table)
	return p.scanRecords(ctx, query, n)
}

func (p *PostgresIndex) scanRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r    Record
			meta []byte
			emb  pgvector.Vector
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &emb); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
		r.Embedding = emb.Slice()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("Postgres connection pool is closed")
	}
	return nil
}

func marshalMeta(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}
