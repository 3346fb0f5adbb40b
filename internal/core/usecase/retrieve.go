package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

var errSearcherNotConfigured = errors.New("semantic searcher not configured")

type RetrieveConfig struct {
	DefaultTopK       int
	DefaultRerankTopK int
	SearchConcurrency int
	SearchTimeout     time.Duration
	RerankTimeout     time.Duration
}

func DefaultRetrieveConfig() RetrieveConfig {
	return RetrieveConfig{
		DefaultTopK:       15,
		DefaultRerankTopK: 5,
		SearchConcurrency: 4,
		SearchTimeout:     5 * time.Second,
		RerankTimeout:     10 * time.Second,
	}
}

func (c RetrieveConfig) normalize() RetrieveConfig {
	out := c
	def := DefaultRetrieveConfig()
	if out.DefaultTopK <= 0 {
		out.DefaultTopK = def.DefaultTopK
	}
	if out.DefaultRerankTopK <= 0 {
		out.DefaultRerankTopK = def.DefaultRerankTopK
	}
	if out.SearchConcurrency <= 0 {
		out.SearchConcurrency = def.SearchConcurrency
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = def.SearchTimeout
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = def.RerankTimeout
	}
	return out
}

// RetrieveUseCase turns one query into a ranked, size-bounded list of corpus chunks.
type RetrieveUseCase struct {
	matcher   *DirectMatcher
	expander  *QueryExpander
	searcher  ports.SemanticSearcher
	rerankers ports.RerankerProvider
	cfg       RetrieveConfig
	logger    *slog.Logger
}

func NewRetrieveUseCase(
	corpus *domain.Corpus,
	expander *QueryExpander,
	searcher ports.SemanticSearcher,
	rerankers ports.RerankerProvider,
	cfg RetrieveConfig,
	logger *slog.Logger,
) *RetrieveUseCase {
	if expander == nil {
		expander = NewQueryExpander(DefaultSynonyms())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		matcher:   NewDirectMatcher(corpus),
		expander:  expander,
		searcher:  searcher,
		rerankers: rerankers,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

// Retrieve never fails. Collaborator failures shrink the result and are recorded in
// the report.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK, rerankTopK int) domain.RetrievalResult {
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}
	if rerankTopK <= 0 {
		rerankTopK = uc.cfg.DefaultRerankTopK
	}
	if strings.TrimSpace(query) == "" {
		return domain.RetrievalResult{
			Hits:   []domain.Hit{},
			Report: domain.RetrievalReport{Rerank: domain.RerankOutcome{Status: domain.RerankSkipped}},
		}
	}

	start := time.Now()
	ids := ExtractIdentifiers(query)
	expansions := uc.expander.Expand(query)

	var semantic []domain.Hit
	var outcomes []domain.SearchOutcome
	searchesDone := make(chan struct{})
	go func() {
		defer close(searchesDone)
		semantic, outcomes = uc.searchExpansions(ctx, expansions, topK)
	}()
	direct := uc.matcher.matchIdentifiers(query, ids)
	<-searchesDone

	candidates := MergeCandidates(direct, semantic)
	ranked, rerank := uc.rerankCandidates(ctx, query, candidates)
	hits := truncateHits(ranked, rerankTopK)

	report := domain.RetrievalReport{
		Identifiers:   ids,
		Expansions:    expansions,
		DirectMatches: len(direct),
		Searches:      outcomes,
		Candidates:    len(candidates),
		Rerank:        rerank,
		Returned:      len(hits),
	}
	uc.logger.Info("retrieval_completed",
		slog.Int("identifiers", len(ids)),
		slog.Int("expansions", len(expansions)),
		slog.Int("direct_matches", len(direct)),
		slog.Int("semantic_failures", report.SemanticFailures()),
		slog.Int("candidates", len(candidates)),
		slog.String("rerank", string(rerank.Status)),
		slog.Int("returned", len(hits)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return domain.RetrievalResult{Hits: hits, Report: report}
}

// searchExpansions runs one semantic search per expansion on a bounded pool. Results
// are returned in expansion order so that merging stays deterministic.
func (uc *RetrieveUseCase) searchExpansions(ctx context.Context, expansions []string, k int) ([]domain.Hit, []domain.SearchOutcome) {
	perExpansion := make([][]domain.Hit, len(expansions))
	outcomes := make([]domain.SearchOutcome, len(expansions))

	var g errgroup.Group
	g.SetLimit(uc.cfg.SearchConcurrency)
	for i, expansion := range expansions {
		g.Go(func() error {
			hits, err := uc.searchOne(ctx, expansion, k)
			outcomes[i] = domain.SearchOutcome{Query: expansion, Hits: len(hits)}
			if err != nil {
				outcomes[i].Error = err.Error()
				uc.logger.Warn("semantic_search_failed",
					slog.String("expansion", expansion),
					slog.String("error", err.Error()))
				return nil
			}
			perExpansion[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, hits := range perExpansion {
		total += len(hits)
	}
	semantic := make([]domain.Hit, 0, total)
	for _, hits := range perExpansion {
		semantic = append(semantic, hits...)
	}
	return semantic, outcomes
}

func (uc *RetrieveUseCase) searchOne(ctx context.Context, text string, k int) (hits []domain.Hit, err error) {
	if uc.searcher == nil {
		return nil, errSearcherNotConfigured
	}
	defer func() {
		if r := recover(); r != nil {
			hits, err = nil, fmt.Errorf("semantic search panic: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.SearchTimeout)
	defer cancel()
	return uc.searcher.Search(callCtx, text, k)
}
