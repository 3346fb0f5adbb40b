package usecase

import (
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// DirectMatcher finds chunks whose metadata explicitly references a figure or table
// identifier from the query. It guarantees recall for such references independent of
// embedding quality.
type DirectMatcher struct {
	corpus *domain.Corpus
}

func NewDirectMatcher(corpus *domain.Corpus) *DirectMatcher {
	return &DirectMatcher{corpus: corpus}
}

func (m *DirectMatcher) Match(query string) []domain.Chunk {
	return m.matchIdentifiers(query, ExtractIdentifiers(query))
}

func (m *DirectMatcher) matchIdentifiers(query string, ids []string) []domain.Chunk {
	if len(ids) == 0 || m.corpus.Len() == 0 {
		return nil
	}
	tableQuery := strings.Contains(strings.ToLower(query), "table")

	var matches []domain.Chunk
	seen := make(map[string]struct{})
	for _, chunk := range m.corpus.Chunks() {
		if !qualifies(chunk, ids, tableQuery) {
			continue
		}
		if _, ok := seen[chunk.ID]; ok {
			continue
		}
		seen[chunk.ID] = struct{}{}
		matches = append(matches, chunk)
	}
	return matches
}

func qualifies(chunk domain.Chunk, ids []string, tableQuery bool) bool {
	if tableQuery && chunk.Meta.Type == domain.ChunkTable {
		if anySubstring(strings.ToLower(chunk.ID), ids) {
			return true
		}
	}
	if chunk.Meta.FigureTag != "" {
		if anySubstring(NormalizeIdentifier(chunk.Meta.FigureTag), ids) {
			return true
		}
	}
	return false
}

func anySubstring(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}
