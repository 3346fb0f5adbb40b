package usecase

import "github.com/kirillkom/hybrid-retriever/internal/core/domain"

// MergeCandidates combines direct and semantic hits by chunk id.
//
// Insertion order is every direct match, then every semantic hit in production order.
// A later insertion with the same id replaces the earlier record completely: a chunk
// found by both paths keeps only its semantic score. Scores are never accumulated.
// The output keeps the position at which each id was first inserted.
func MergeCandidates(direct []domain.Chunk, semantic []domain.Hit) []domain.Hit {
	out := make([]domain.Hit, 0, len(direct)+len(semantic))
	position := make(map[string]int, len(direct)+len(semantic))

	put := func(hit domain.Hit) {
		if idx, ok := position[hit.ID]; ok {
			out[idx] = hit
			return
		}
		position[hit.ID] = len(out)
		out = append(out, hit)
	}

	for _, chunk := range direct {
		put(domain.NewDirectHit(chunk))
	}
	for _, hit := range semantic {
		put(hit)
	}
	return out
}

func truncateHits(hits []domain.Hit, limit int) []domain.Hit {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}
