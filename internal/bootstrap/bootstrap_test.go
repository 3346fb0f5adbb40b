package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/config"
)

func writeCorpus(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, "processed", "chunks.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
}

func testConfig(dir string) config.Config {
	return config.Config{
		StoragePath:       dir,
		CorpusSource:      config.CorpusSourceFile,
		CorpusKey:         "processed/chunks.jsonl",
		OllamaURL:         "http://127.0.0.1:1",
		QdrantURL:         "http://127.0.0.1:1",
		QdrantCollection:  "chunks",
		RAGEmbedCacheSize: 8,
	}
}

func TestNewWiresFileCorpus(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, `{"id":"c1","text":"Figure III.5 revenue","meta":{"page":4,"type":"image","figure_tag":"III.5"}}
{"id":"c2","text":"Table 2 MTU","meta":{"page":5,"type":"table"}}
{"id":"c1","text":"duplicate","meta":{"page":9}}
`)

	app, err := New(context.Background(), testConfig(dir), nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Corpus.Len() != 2 {
		t.Fatalf("expected 2 unique chunks, got %d", app.Corpus.Len())
	}
	if app.Retriever == nil || app.QueryUC == nil || app.IndexUC == nil || app.EvaluateUC == nil || app.Reports == nil {
		t.Fatalf("expected all use cases to be wired: %+v", app)
	}
	if app.Rerankers != nil {
		t.Fatalf("expected no reranker provider when reranking is disabled")
	}
	app.WarmReranker(context.Background())
}

func TestNewFailsWithoutCorpus(t *testing.T) {
	if _, err := New(context.Background(), testConfig(t.TempDir()), nil, Options{}); err == nil {
		t.Fatalf("expected error for missing corpus file")
	}
}

func TestNewRejectsUnknownCorpusSource(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, `{"id":"c1","text":"x","meta":{"page":1}}`+"\n")
	cfg := testConfig(dir)
	cfg.CorpusSource = "s3"

	if _, err := New(context.Background(), cfg, nil, Options{}); err == nil {
		t.Fatalf("expected error for unknown corpus source")
	}
}

func TestLoadEvaluationCases(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, `{"id":"c1","text":"x","meta":{"page":1}}`+"\n")
	evalPath := filepath.Join(dir, "eval", "questions.json")
	if err := os.MkdirAll(filepath.Dir(evalPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(evalPath, []byte(`[{"id":"q1","question":"revenue?","expected_page":1}]`), 0o644); err != nil {
		t.Fatalf("write eval set: %v", err)
	}

	app, err := New(context.Background(), testConfig(dir), nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	cases, err := app.LoadEvaluationCases(context.Background(), "eval/questions.json")
	if err != nil {
		t.Fatalf("LoadEvaluationCases() error = %v", err)
	}
	if len(cases) != 1 || cases[0].ID != "q1" {
		t.Fatalf("unexpected cases: %+v", cases)
	}
}
