package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// ChunkRepository keeps a relational copy of the corpus. It can serve as the corpus
// source instead of the jsonl file.
type ChunkRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewChunkRepository(db *sql.DB, logger *slog.Logger) *ChunkRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkRepository{db: db, logger: logger}
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	chunk_type TEXT NOT NULL DEFAULT 'text',
	figure_tag TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	ordinal INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_ordinal ON chunks(ordinal);
CREATE INDEX IF NOT EXISTS idx_chunks_figure_tag ON chunks(figure_tag) WHERE figure_tag <> '';
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// UpsertChunks writes chunks in one transaction. The ordinal column keeps corpus
// order so that LoadChunks returns chunks as they were loaded.
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (id, text, page, chunk_type, figure_tag, source, path, ordinal, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
ON CONFLICT (id) DO UPDATE SET
	text = EXCLUDED.text,
	page = EXCLUDED.page,
	chunk_type = EXCLUDED.chunk_type,
	figure_tag = EXCLUDED.figure_tag,
	source = EXCLUDED.source,
	path = EXCLUDED.path,
	ordinal = EXCLUDED.ordinal,
	updated_at = now()
`)
	if err != nil {
		return fmt.Errorf("prepare chunk upsert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Text, chunk.Meta.Page, string(chunk.Meta.Type),
			chunk.Meta.FigureTag, chunk.Meta.Source, chunk.Meta.Path, i,
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// LoadChunks returns all stored chunks in corpus order. Rows with an unknown chunk
// type are skipped and logged.
func (r *ChunkRepository) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text, page, chunk_type, figure_tag, source, path
FROM chunks
ORDER BY ordinal, id
`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0, 256)
	skipped := 0
	for rows.Next() {
		var (
			chunk   domain.Chunk
			rawType string
		)
		if err := rows.Scan(
			&chunk.ID, &chunk.Text, &chunk.Meta.Page, &rawType,
			&chunk.Meta.FigureTag, &chunk.Meta.Source, &chunk.Meta.Path,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunkType, ok := domain.ParseChunkType(rawType)
		if !ok {
			skipped++
			continue
		}
		chunk.Meta.Type = chunkType
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	if skipped > 0 {
		r.logger.Warn("chunk_rows_skipped", slog.Int("skipped", skipped))
	}
	return out, nil
}
