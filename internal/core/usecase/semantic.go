package usecase

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

const defaultEmbeddingCacheSize = 512

// EmbeddingSearcher implements ports.SemanticSearcher on top of an embedder and a
// vector store. Query embeddings are cached because expansions such as synonym
// phrases repeat across calls.
type EmbeddingSearcher struct {
	embedder ports.Embedder
	store    ports.VectorStore
	cache    *lru.Cache[string, []float32]
}

func NewEmbeddingSearcher(embedder ports.Embedder, store ports.VectorStore, cacheSize int) (*EmbeddingSearcher, error) {
	if cacheSize <= 0 {
		cacheSize = defaultEmbeddingCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &EmbeddingSearcher{
		embedder: embedder,
		store:    store,
		cache:    cache,
	}, nil
}

func (s *EmbeddingSearcher) Search(ctx context.Context, text string, k int) ([]domain.Hit, error) {
	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search vector store: %w", err)
	}
	return hits, nil
}

func (s *EmbeddingSearcher) embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	if vector, ok := s.cache.Get(key); ok {
		return vector, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	s.cache.Add(key, vector)
	return vector, nil
}
