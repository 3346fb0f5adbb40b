package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/hybrid-retriever/internal/config"
	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
	"github.com/kirillkom/hybrid-retriever/internal/core/usecase"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/corpus/evalset"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/corpus/jsonl"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/vector/qdrant"
)

// Options selects the optional collaborators a binary needs.
type Options struct {
	// Queue connects to NATS.
	Queue bool
	// MirrorToPostgres makes the indexer copy chunks into Postgres.
	MirrorToPostgres bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Storage ports.ObjectStorage
	Corpus  *domain.Corpus
	Queue   *nats.Queue

	Rerankers  *crossencoder.LazyProvider
	Retriever  *usecase.RetrieveUseCase
	QueryUC    *usecase.QueryUseCase
	IndexUC    *usecase.IndexCorpusUseCase
	EvaluateUC *usecase.EvaluateUseCase
	Reports    ports.EvaluationReportWriter

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	if err := app.wire(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg, logger := a.Config, a.Logger

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	a.Storage = storage

	var repo *postgres.ChunkRepository
	if cfg.CorpusSource == config.CorpusSourcePostgres || opts.MirrorToPostgres {
		repo, err = a.openChunkRepository(ctx)
		if err != nil {
			return err
		}
	}

	var loader ports.CorpusLoader = jsonl.NewLoader(storage, cfg.CorpusKey, logger)
	switch cfg.CorpusSource {
	case config.CorpusSourceFile:
	case config.CorpusSourcePostgres:
		loader = repo
	default:
		return fmt.Errorf("unknown corpus source %q", cfg.CorpusSource)
	}
	corpus, err := loadCorpus(ctx, loader, logger)
	if err != nil {
		return err
	}
	a.Corpus = corpus

	queryExec := resilience.NewExecutor(resilienceConfig(cfg).SingleAttempt(), logger)
	indexExec := resilience.NewExecutor(resilienceConfig(cfg), logger)

	queryOllama := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, queryExec)
	indexOllama := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, indexExec)

	searcher, err := usecase.NewEmbeddingSearcher(
		ollama.NewEmbedder(queryOllama),
		qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, queryExec),
		cfg.RAGEmbedCacheSize,
	)
	if err != nil {
		return fmt.Errorf("init semantic searcher: %w", err)
	}

	var rerankers ports.RerankerProvider
	if cfg.RerankEnabled {
		a.Rerankers = crossencoder.NewLazyProvider(func(ctx context.Context) (ports.Reranker, error) {
			return crossencoder.New(ctx, cfg.RerankURL, cfg.RerankModel, cfg.RerankTimeout, queryExec)
		}, logger)
		rerankers = a.Rerankers
	}

	rules := usecase.DefaultSynonyms()
	if cfg.RAGSynonymsPath != "" {
		rules, err = config.LoadSynonyms(cfg.RAGSynonymsPath)
		if err != nil {
			return fmt.Errorf("load synonyms: %w", err)
		}
	}

	a.Retriever = usecase.NewRetrieveUseCase(
		corpus,
		usecase.NewQueryExpander(rules),
		searcher,
		rerankers,
		usecase.RetrieveConfig{
			DefaultTopK:       cfg.RAGTopK,
			DefaultRerankTopK: cfg.RAGRerankTopK,
			SearchConcurrency: cfg.RAGSearchConcurrency,
			SearchTimeout:     cfg.RAGSearchTimeout,
			RerankTimeout:     cfg.RerankTimeout,
		},
		logger,
	)
	a.QueryUC = usecase.NewQueryUseCase(a.Retriever, ollama.NewGenerator(queryOllama))
	a.EvaluateUC = usecase.NewEvaluateUseCase(a.Retriever, logger)
	a.Reports = xlsx.NewWriter(storage)

	var mirror ports.ChunkRepository
	if opts.MirrorToPostgres && cfg.CorpusSource != config.CorpusSourcePostgres {
		mirror = repo
	}
	a.IndexUC = usecase.NewIndexCorpusUseCase(
		ollama.NewEmbedder(indexOllama),
		qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, indexExec),
		mirror,
		usecase.IndexConfig{BatchSize: cfg.IndexBatchSize, Workers: cfg.IndexWorkers},
		logger,
	)

	if opts.Queue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: queryExec,
			Logger:             logger,
		})
		if err != nil {
			return fmt.Errorf("init message queue: %w", err)
		}
		a.Queue = queue
		a.closers = append(a.closers, queue.Close)
	}

	return nil
}

// WarmReranker loads the reranker at startup so the first query does not pay for it.
// A failure is logged by the provider and leaves reranking disabled.
func (a *App) WarmReranker(ctx context.Context) {
	if a.Rerankers == nil {
		return
	}
	_, _ = a.Rerankers.Reranker(ctx)
}

// LoadEvaluationCases reads the evaluation set stored under key.
func (a *App) LoadEvaluationCases(ctx context.Context, key string) ([]domain.EvaluationCase, error) {
	return evalset.Load(ctx, a.Storage, key)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openChunkRepository(ctx context.Context) (*postgres.ChunkRepository, error) {
	db, err := postgres.OpenDB(ctx, a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { closeDB(db, a.Logger) })

	repo := postgres.NewChunkRepository(db, a.Logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func loadCorpus(ctx context.Context, loader ports.CorpusLoader, logger *slog.Logger) (*domain.Corpus, error) {
	chunks, err := loader.LoadChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	corpus, duplicates := domain.NewCorpus(chunks)
	if corpus.Len() == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load corpus", errors.New("corpus has no valid chunks"))
	}
	logger.Info("corpus_loaded", slog.Int("chunks", corpus.Len()), slog.Int("duplicates", duplicates))
	return corpus, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.BreakerEnabled = cfg.BreakerEnabled
	return rc
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("postgres_close_failed", slog.String("error", err.Error()))
	}
}
