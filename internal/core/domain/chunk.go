package domain

import "strings"

type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkTable ChunkType = "table"
	ChunkImage ChunkType = "image"
)

// ParseChunkType maps a raw record type to a ChunkType. An empty value means text.
func ParseChunkType(raw string) (ChunkType, bool) {
	switch ChunkType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ChunkText:
		return ChunkText, true
	case ChunkTable:
		return ChunkTable, true
	case ChunkImage:
		return ChunkImage, true
	default:
		return "", false
	}
}

type ChunkMeta struct {
	Page      int       `json:"page"`
	Type      ChunkType `json:"type"`
	FigureTag string    `json:"figure_tag,omitempty"`
	Source    string    `json:"source,omitempty"`
	Path      string    `json:"path,omitempty"`
}

// Chunk is one retrievable unit of corpus text. Chunks are never mutated after load.
type Chunk struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Meta ChunkMeta `json:"meta"`
}

// Corpus is the immutable, id-unique collection of chunks for one document.
type Corpus struct {
	chunks []Chunk
}

// NewCorpus keeps the first chunk for every id and reports how many duplicates were dropped.
func NewCorpus(chunks []Chunk) (*Corpus, int) {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]Chunk, 0, len(chunks))
	dropped := 0
	for _, chunk := range chunks {
		if _, ok := seen[chunk.ID]; ok {
			dropped++
			continue
		}
		seen[chunk.ID] = struct{}{}
		out = append(out, chunk)
	}
	return &Corpus{chunks: out}, dropped
}

// Chunks returns the corpus in load order. Callers must treat the slice as read-only.
func (c *Corpus) Chunks() []Chunk {
	if c == nil {
		return nil
	}
	return c.chunks
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.chunks)
}
