package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig().SingleAttempt()
	cfg.BreakerEnabled = false
	return resilience.NewExecutor(cfg, nil)
}

func TestUpsertChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var upserted []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/points":
			var body struct {
				Points []map[string]any `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode upsert: %v", err)
			}
			upserted = append(upserted, body.Points...)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "chunks", testExecutor())
	chunks := []domain.Chunk{
		{ID: "5-txt-2", Text: "a", Meta: domain.ChunkMeta{Page: 5, Type: domain.ChunkText, FigureTag: "Figure III.5"}},
		{ID: "12-tbl-1", Text: "b", Meta: domain.ChunkMeta{Page: 12, Type: domain.ChunkTable}},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	for i := 0; i < 2; i++ {
		if err := client.UpsertChunks(context.Background(), chunks, vectors); err != nil {
			t.Fatalf("UpsertChunks() #%d error = %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if len(upserted) != 4 {
		t.Fatalf("expected 4 upserted points, got %d", len(upserted))
	}
	if upserted[0]["id"] != upserted[2]["id"] || upserted[0]["id"] != PointID("5-txt-2") {
		t.Fatalf("point ids must be stable per chunk id: %v vs %v", upserted[0]["id"], upserted[2]["id"])
	}
	payload := upserted[0]["payload"].(map[string]any)
	if payload["id"] != "5-txt-2" || payload["figure_tag"] != "Figure III.5" || payload["type"] != "text" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestUpsertChunksTreatsConflictAsExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/chunks" {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks", testExecutor())
	err := client.UpsertChunks(context.Background(), []domain.Chunk{{ID: "a", Meta: domain.ChunkMeta{Type: domain.ChunkText}}}, [][]float32{{1}})
	if err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/chunks" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "chunks", testExecutor())
	err := client.UpsertChunks(context.Background(), []domain.Chunk{{ID: "a"}}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("5xx should be temporary, got %v", err)
	}
}

func TestSearchDecodesHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["limit"].(float64) != 3 {
			t.Fatalf("unexpected limit: %v", body["limit"])
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"id":"5-txt-2","text":"growth","page":5,"type":"text","figure_tag":"Figure III.5"}},
			{"score":0.80,"payload":{"id":"","text":"orphan","page":1,"type":"text"}},
			{"score":0.75,"payload":{"id":"9-vid-1","text":"bad type","page":9,"type":"video"}},
			{"score":0.70,"payload":{"id":"12-tbl-1","text":"| a |","page":12,"type":"table"}}
		]}`))
	}))
	defer server.Close()

	hits, err := New(server.URL, "chunks", testExecutor()).Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 valid hits, got %d", len(hits))
	}
	if hits[0].ID != "5-txt-2" || hits[0].Meta.Page != 5 || *hits[0].SimilarityScore != 0.91 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[1].Meta.Type != domain.ChunkTable || hits[1].RerankScore != nil {
		t.Fatalf("unexpected second hit: %+v", hits[1])
	}
}

func TestSearchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "chunks", testExecutor()).Search(context.Background(), []float32{1}, 3)
	if err == nil || !strings.Contains(err.Error(), "collection not found") {
		t.Fatalf("expected status error with body, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary")
	}
}
