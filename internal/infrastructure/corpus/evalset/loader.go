package evalset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

type record struct {
	ID           json.RawMessage `json:"id"`
	Question     string          `json:"question"`
	ExpectedPage *int            `json:"expected_page"`
}

// Load reads a JSON array of evaluation cases from object storage.
func Load(ctx context.Context, storage ports.ObjectStorage, key string) ([]domain.EvaluationCase, error) {
	rc, err := storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open evaluation set %q: %w", key, err)
	}
	defer rc.Close()
	return Decode(rc)
}

// Decode accepts string or numeric ids. Cases without a question are rejected.
func Decode(r io.Reader) ([]domain.EvaluationCase, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode evaluation set", err)
	}

	cases := make([]domain.EvaluationCase, 0, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.Question) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode evaluation set",
				fmt.Errorf("case %d has no question", i+1))
		}
		id, err := caseID(rec.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode evaluation set",
				fmt.Errorf("case %d: %w", i+1, err))
		}
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		cases = append(cases, domain.EvaluationCase{
			ID:           id,
			Question:     rec.Question,
			ExpectedPage: rec.ExpectedPage,
		})
	}
	return cases, nil
}

func caseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", errors.New("id must be a string or a number")
}
