package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

func textChunk(id, text string, page int) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, Meta: domain.ChunkMeta{Page: page, Type: domain.ChunkText}}
}

func semanticHit(id string, score float64) domain.Hit {
	return domain.NewSemanticHit(textChunk(id, "text of "+id, 1), score)
}

func mustCorpus(chunks ...domain.Chunk) *domain.Corpus {
	corpus, _ := domain.NewCorpus(chunks)
	return corpus
}

type searchCall struct {
	text string
	k    int
}

// fakeSearcher answers from a per-expansion table. Unknown expansions return no hits.
type fakeSearcher struct {
	mu       sync.Mutex
	calls    []searchCall
	byText   map[string][]domain.Hit
	failFor  map[string]error
	allErr   error
	panicFor string
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *fakeSearcher) Search(ctx context.Context, text string, k int) ([]domain.Hit, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxInFlight.Load()
		if cur <= seen || s.maxInFlight.CompareAndSwap(seen, cur) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, searchCall{text: text, k: k})
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panicFor != "" && text == s.panicFor {
		panic("vector store exploded")
	}
	if s.allErr != nil {
		return nil, s.allErr
	}
	if err, ok := s.failFor[text]; ok {
		return nil, err
	}
	return s.byText[text], nil
}

func (s *fakeSearcher) Calls() []searchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]searchCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type fakeReranker struct {
	mu     sync.Mutex
	calls  int
	scores func(call int, query string, texts []string) ([]float64, error)
}

func (r *fakeReranker) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()
	return r.scores(call, query, texts)
}

func (r *fakeReranker) ModelName() string {
	return "fake-cross-encoder"
}

type fakeRerankerProvider struct {
	reranker ports.Reranker
	err      error
}

func (p *fakeRerankerProvider) Reranker(context.Context) (ports.Reranker, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.reranker, nil
}

// reverseScores gives the last candidate the highest score.
func reverseScores(_ int, _ string, texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	for i := range texts {
		out[i] = float64(i)
	}
	return out, nil
}

var errBackendDown = errors.New("backend down")

func manyHits(n int) []domain.Hit {
	hits := make([]domain.Hit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, semanticHit(fmt.Sprintf("c-%02d", i), 1-float64(i)/100))
	}
	return hits
}

func hitIDs(hits []domain.Hit) []string {
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.ID)
	}
	return out
}
