package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Compile-time assertion that PGStore satisfies Store.
var _ Store = (*PGStore)(nil)

// PGStore persists embedded knowledge in PostgreSQL with pgvector, so a
// corpus survives across sessions and can be shared by many NPCs. Cosine
// distance is evaluated server-side with the <=> operator.
//
// All methods are safe for concurrent use.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to the database at dsn, registers pgvector types on
// every connection, and ensures the knowledge table exists.
//
// dimensions must match the embedding model's output size; changing it after
// the table exists requires a manual schema change.
func NewPGStore(ctx context.Context, dsn string, dimensions int) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("rag: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rag: ping: %w", err)
	}
	if err := migrate(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rag: migrate: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS knowledge_chunks (
			    id        BIGSERIAL PRIMARY KEY,
			    content   TEXT NOT NULL,
			    embedding VECTOR(%d) NOT NULL
			)`, dimensions),
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_embedding_idx
		     ON knowledge_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, q := range statements {
		if _, err := pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) Add(ctx context.Context, c Chunk) error {
	const q = `INSERT INTO knowledge_chunks (content, embedding) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, c.Text, pgvector.NewVector(c.Embedding)); err != nil {
		return fmt.Errorf("rag: index chunk: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity. pgvector's <=>
// yields cosine distance, so similarity is 1 - distance; the threshold is
// applied to the similarity.
func (s *PGStore) Search(ctx context.Context, embedding []float32, k int, threshold float64) ([]Scored, error) {
	const q = `
		SELECT content, embedding, 1 - (embedding <=> $1) AS score
		FROM   knowledge_chunks
		WHERE  1 - (embedding <=> $1) >= $2
		ORDER  BY embedding <=> $1
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), threshold, k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Scored, error) {
		var (
			sc  Scored
			vec pgvector.Vector
		)
		if err := row.Scan(&sc.Text, &vec, &sc.Score); err != nil {
			return Scored{}, err
		}
		sc.Embedding = vec.Slice()
		return sc, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rag: scan rows: %w", err)
	}
	return results, nil
}

func (s *PGStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("rag: count chunks: %w", err)
	}
	return n, nil
}
