// Package pgvector stores chunk records in Postgres using the pgvector
// extension. Similarity is cosine, reported as 1 - cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

//go:embed schema.sql
var schema string

// Collection implements storage.Collection on a Postgres database.
type Collection struct {
	db     *sql.DB
	closed atomic.Bool
	logger *slog.Logger
}

var (
	_ storage.Collection = (*Collection)(nil)
	_ storage.Scanner    = (*Collection)(nil)
)

// Open connects to databaseURL, verifies the connection, and ensures the
// chunks table exists.
func Open(ctx context.Context, databaseURL string) (*Collection, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Collection{
		db:     db,
		logger: slog.Default().With("component", "pgvector"),
	}, nil
}

// Close closes the connection pool.
func (c *Collection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

// BatchUpsert inserts or replaces all records in a single transaction.
func (c *Collection) BatchUpsert(ctx context.Context, records []core.ChunkRecord) error {
	if c.closed.Load() {
		return storage.ErrStorageClosed
	}
	if len(records) == 0 {
		return storage.ErrEmptyBatch
	}
	for i := range records {
		if err := core.ValidateChunkRecord(&records[i]); err != nil {
			return err
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chunks (id, job_id, page, source, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			page = EXCLUDED.page,
			source = EXCLUDED.source,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.JobID, r.Page, r.Source, r.Text, pgvector.NewVector(r.Vector),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	c.logger.Debug("upserted chunks", "count", len(records))
	return nil
}

// Query returns the topK chunks nearest to vector by cosine distance.
func (c *Collection) Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error) {
	if c.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	const q = `
		SELECT id, job_id, page, source, text, embedding, embedding <=> $1 AS distance
		FROM chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.SearchResult
	for rows.Next() {
		var (
			r        core.ChunkRecord
			emb      pgvector.Vector
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.Page, &r.Source, &r.Text, &emb, &distance); err != nil {
			return nil, err
		}
		r.Vector = emb.Slice()
		out = append(out, &core.SearchResult{Record: &r, Score: float32(1 - distance)})
	}
	return out, rows.Err()
}

// Scan yields every stored chunk ordered by id.
func (c *Collection) Scan(ctx context.Context) iter.Seq2[core.ChunkRecord, error] {
	return func(yield func(core.ChunkRecord, error) bool) {
		if c.closed.Load() {
			yield(core.ChunkRecord{}, storage.ErrStorageClosed)
			return
		}
		rows, err := c.db.QueryContext(ctx, `SELECT id, job_id, page, source, text, embedding FROM chunks ORDER BY id`)
		if err != nil {
			yield(core.ChunkRecord{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r   core.ChunkRecord
				emb pgvector.Vector
			)
			if err := rows.Scan(&r.ID, &r.JobID, &r.Page, &r.Source, &r.Text, &emb); err != nil {
				yield(core.ChunkRecord{}, err)
				return
			}
			r.Vector = emb.Slice()
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.ChunkRecord{}, err)
		}
	}
}

// Count returns the number of stored chunks.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, storage.ErrStorageClosed
	}
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n)
	return n, err
}
