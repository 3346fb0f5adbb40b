package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

type IndexConfig struct {
	BatchSize int
	Workers   int
}

// IndexCorpusUseCase embeds corpus chunks and loads them into the vector store.
type IndexCorpusUseCase struct {
	embedder ports.Embedder
	vectorDB ports.VectorStore
	mirror   ports.ChunkRepository
	cfg      IndexConfig
	logger   *slog.Logger
}

func NewIndexCorpusUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	mirror ports.ChunkRepository,
	cfg IndexConfig,
	logger *slog.Logger,
) *IndexCorpusUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexCorpusUseCase{
		embedder: embedder,
		vectorDB: vectorDB,
		mirror:   mirror,
		cfg:      cfg,
		logger:   logger,
	}
}

// Index embeds and upserts chunks batch by batch. Failed batches are counted; the run
// only fails when no batch could be indexed.
func (uc *IndexCorpusUseCase) Index(ctx context.Context, chunks []domain.Chunk) (domain.IndexStats, error) {
	stats := domain.IndexStats{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return stats, domain.WrapError(domain.ErrInvalidInput, "index corpus", errors.New("corpus is empty"))
	}

	if uc.mirror != nil {
		if err := uc.mirror.UpsertChunks(ctx, chunks); err != nil {
			return stats, fmt.Errorf("mirror chunks: %w", err)
		}
		stats.Mirrored = len(chunks)
	}

	batches := splitBatches(chunks, uc.cfg.BatchSize)
	stats.Batches = len(batches)

	pool, err := ants.NewPool(uc.cfg.Workers)
	if err != nil {
		return stats, fmt.Errorf("create index pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failed   int
		firstErr error
	)
	recordFailure := func(batch int, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed++
		if firstErr == nil {
			firstErr = err
		}
		uc.logger.Error("index_batch_failed", slog.Int("batch", batch), slog.String("error", err.Error()))
	}

	for i, batch := range batches {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := uc.indexBatch(ctx, batch); err != nil {
				recordFailure(i, err)
			}
		})
		if submitErr != nil {
			wg.Done()
			recordFailure(i, fmt.Errorf("submit batch: %w", submitErr))
		}
	}
	wg.Wait()

	stats.FailedBatches = failed
	uc.logger.Info("index_completed",
		slog.Int("chunks", stats.Chunks),
		slog.Int("batches", stats.Batches),
		slog.Int("failed_batches", stats.FailedBatches))

	if failed == len(batches) {
		return stats, fmt.Errorf("all %d batches failed: %w", failed, firstErr)
	}
	return stats, nil
}

func (uc *IndexCorpusUseCase) indexBatch(ctx context.Context, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(batch) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
		)
	}

	if err := uc.vectorDB.UpsertChunks(ctx, batch, vectors); err != nil {
		return fmt.Errorf("upsert chunks in vector db: %w", err)
	}
	return nil
}

func splitBatches(chunks []domain.Chunk, size int) [][]domain.Chunk {
	batches := make([][]domain.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}
	return batches
}
