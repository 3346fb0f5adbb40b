package crossencoder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

// Factory builds the reranker. It is called at most once per provider.
type Factory func(ctx context.Context) (ports.Reranker, error)

// LazyProvider constructs the reranker on first use. A construction failure is
// remembered and every later call reports domain.ErrUnavailable without retrying.
type LazyProvider struct {
	factory Factory
	logger  *slog.Logger

	once     sync.Once
	reranker ports.Reranker
	err      error
}

func NewLazyProvider(factory Factory, logger *slog.Logger) *LazyProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LazyProvider{factory: factory, logger: logger}
}

func (p *LazyProvider) Reranker(ctx context.Context) (ports.Reranker, error) {
	p.once.Do(func() {
		reranker, err := p.factory(ctx)
		if err != nil {
			p.err = domain.WrapError(domain.ErrUnavailable, "load reranker", err)
			p.logger.Warn("reranker_unavailable", slog.String("error", err.Error()))
			return
		}
		p.reranker = reranker
		p.logger.Info("reranker_loaded", slog.String("model", reranker.ModelName()))
	})
	return p.reranker, p.err
}
