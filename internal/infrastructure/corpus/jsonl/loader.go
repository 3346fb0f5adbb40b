package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

const maxLineBytes = 16 << 20

type record struct {
	ID   *string `json:"id"`
	Text string  `json:"text"`
	Meta struct {
		Page      int    `json:"page"`
		Type      string `json:"type"`
		FigureTag string `json:"figure_tag"`
		Source    string `json:"source"`
		Path      string `json:"path"`
	} `json:"meta"`
}

// Loader reads one chunk record per line from object storage.
type Loader struct {
	storage ports.ObjectStorage
	key     string
	logger  *slog.Logger
}

func NewLoader(storage ports.ObjectStorage, key string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{storage: storage, key: key, logger: logger}
}

func (l *Loader) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	rc, err := l.storage.Open(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", l.key, err)
	}
	defer rc.Close()

	chunks, malformed, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", l.key, err)
	}
	if malformed > 0 {
		l.logger.Warn("corpus_records_skipped", slog.String("key", l.key), slog.Int("malformed", malformed))
	}
	return chunks, nil
}

// Decode parses chunk records and counts the ones it had to drop. Blank lines are
// ignored; a record is malformed when it is not JSON, has no id, names an unknown
// chunk type or is longer than 16 MiB.
func Decode(r io.Reader) ([]domain.Chunk, int, error) {
	return decodeLines(r, maxLineBytes)
}

func decodeLines(r io.Reader, limit int) ([]domain.Chunk, int, error) {
	reader := bufio.NewReaderSize(r, 64*1024)

	var (
		chunks    []domain.Chunk
		malformed int
		line      []byte
		oversized bool
	)
	for {
		fragment, err := reader.ReadSlice('\n')
		if !oversized {
			line = append(line, fragment...)
			// Room for a trailing CRLF before the record counts as oversized.
			if len(line) > limit+2 {
				oversized = true
				line = line[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, malformed, err
		}

		record := bytes.TrimSpace(line)
		switch {
		case oversized || len(record) > limit:
			malformed++
		case len(record) == 0:
		default:
			if chunk, ok := decodeRecord(record); ok {
				chunks = append(chunks, chunk)
			} else {
				malformed++
			}
		}
		line, oversized = line[:0], false

		if err != nil {
			return chunks, malformed, nil
		}
	}
}

func decodeRecord(line []byte) (domain.Chunk, bool) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.Chunk{}, false
	}
	if rec.ID == nil || strings.TrimSpace(*rec.ID) == "" {
		return domain.Chunk{}, false
	}
	chunkType, ok := domain.ParseChunkType(rec.Meta.Type)
	if !ok {
		return domain.Chunk{}, false
	}
	return domain.Chunk{
		ID:   *rec.ID,
		Text: rec.Text,
		Meta: domain.ChunkMeta{
			Page:      rec.Meta.Page,
			Type:      chunkType,
			FigureTag: rec.Meta.FigureTag,
			Source:    rec.Meta.Source,
			Path:      rec.Meta.Path,
		},
	}, true
}
