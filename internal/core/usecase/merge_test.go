package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

func TestMergeCandidatesSemanticOverridesDirect(t *testing.T) {
	chunk := textChunk("5-txt-2", "Order growth", 5)

	got := MergeCandidates([]domain.Chunk{chunk}, []domain.Hit{domain.NewSemanticHit(chunk, 0.8)})

	require.Len(t, got, 1)
	require.NotNil(t, got[0].SimilarityScore)
	assert.InDelta(t, 0.8, *got[0].SimilarityScore, 1e-9)
	assert.Nil(t, got[0].RerankScore)
}

func TestMergeCandidatesKeepsFirstPositionLastValue(t *testing.T) {
	direct := []domain.Chunk{textChunk("a", "A", 1), textChunk("b", "B", 2)}
	semantic := []domain.Hit{semanticHit("c", 0.5), semanticHit("a", 0.9), semanticHit("c", 0.7)}

	got := MergeCandidates(direct, semantic)

	require.Equal(t, []string{"a", "b", "c"}, hitIDs(got))
	assert.InDelta(t, 0.9, *got[0].SimilarityScore, 1e-9)
	assert.Nil(t, got[1].SimilarityScore)
	assert.InDelta(t, 0.7, *got[2].SimilarityScore, 1e-9)
}

func TestMergeCandidatesUniqueIDs(t *testing.T) {
	got := MergeCandidates(
		[]domain.Chunk{textChunk("x", "", 0), textChunk("x", "", 0)},
		append(manyHits(3), manyHits(3)...),
	)

	seen := make(map[string]bool)
	for _, hit := range got {
		assert.False(t, seen[hit.ID], "duplicate id %s", hit.ID)
		seen[hit.ID] = true
	}
	assert.Len(t, got, 4)
}

func TestMergeCandidatesEmpty(t *testing.T) {
	got := MergeCandidates(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTruncateHits(t *testing.T) {
	hits := manyHits(4)
	assert.Len(t, truncateHits(hits, 2), 2)
	assert.Len(t, truncateHits(hits, 10), 4)
	assert.Len(t, truncateHits(nil, 3), 0)
}
