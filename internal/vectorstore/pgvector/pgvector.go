package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"disasterwatch/internal/domain"
	"disasterwatch/internal/vectorstore"
)

// Storage keeps narratives in a Postgres table with a pgvector column.
type Storage struct {
	pool  *pgxpool.Pool
	table string

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	DSN   string
	Table string
}

// New connects to Postgres, installing the vector extension if needed.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	// The vector type must exist before AfterConnect can register it.
	conn, err := pgx.ConnectConfig(ctx, poolCfg.ConnConfig.Copy())
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	_, err = conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("create extension: %w", err)
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect pool: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "disaster_narratives"
	}
	return &Storage{pool: pool, table: pgx.Identifier{table}.Sanitize()}, nil
}

func (s *Storage) Close() { s.pool.Close() }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	_, err := s.pool.Exec(ctx, createTableSQL(s.table, dimension))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func createTableSQL(table string, dimension int) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         UUID PRIMARY KEY,
			text       TEXT NOT NULL,
			metadata   JSONB NOT NULL,
			embedding  vector(%d) NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table, dimension)
}

func (s *Storage) Upsert(ctx context.Context, points []domain.Point) error {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim == 0 {
		return vectorstore.ErrNotInitialized
	}
	if err := vectorstore.CheckPoints(points, dim); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range points {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (id, text, metadata, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				text = EXCLUDED.text, metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding, indexed_at = NOW()
		`, s.table), p.ID, p.Text, meta, pgvector.NewVector(toFloat32(p.Vector)))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}
	return tx.Commit(ctx)
}

// Search orders by cosine distance; Score is 1 - distance.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id::text, text, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, s.table), pgvector.NewVector(toFloat32(vector)), topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			r    domain.SearchResult
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &r.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Storage) Clear(ctx context.Context) error {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table))
	return err
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
