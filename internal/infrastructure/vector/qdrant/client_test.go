package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

func TestReplaceDocumentEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls, deleteCalls int32
	var mu sync.Mutex
	var upserted []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/delete":
			atomic.AddInt32(&deleteCalls, 1)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			var body struct {
				Points []map[string]any `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			upserted = body.Points
			mu.Unlock()
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	chunks := []domain.Chunk{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.ReplaceDocument(context.Background(), "doc-1", chunks, vectors); err != nil {
		t.Fatalf("first ReplaceDocument() error = %v", err)
	}
	firstIDs := []any{upserted[0]["id"], upserted[1]["id"]}
	if err := client.ReplaceDocument(context.Background(), "doc-1", chunks, vectors); err != nil {
		t.Fatalf("second ReplaceDocument() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if got := atomic.LoadInt32(&deleteCalls); got != 2 {
		t.Fatalf("expected old points dropped before each upsert, got %d deletes", got)
	}
	if upserted[0]["id"] != firstIDs[0] || upserted[1]["id"] != firstIDs[1] {
		t.Fatalf("expected deterministic point ids")
	}
	payload, _ := upserted[1]["payload"].(map[string]any)
	if payload["doc_id"] != "doc-1" || payload["text"] != "b" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	err := client.ReplaceDocument(context.Background(), "doc-1", []domain.Chunk{{Text: "a"}}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected 500 to be temporary, got %v", err)
	}
}

func TestSearchFiltersByDocumentAndOrdersResults(t *testing.T) {
	var filterValue any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Limit  int `json:"limit"`
			Filter struct {
				Must []struct {
					Key   string         `json:"key"`
					Match map[string]any `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Filter.Must) == 1 && body.Filter.Must[0].Key == "doc_id" {
			filterValue = body.Filter.Must[0].Match["value"]
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.5,"payload":{"chunk_index":3,"text":"c","page":2}},
			{"score":0.9,"payload":{"chunk_index":1,"text":"a","page":1}},
			{"score":0.5,"payload":{"chunk_index":2,"text":"b","page":1}}
		]}`))
	}))
	defer server.Close()

	results, err := New(server.URL, "docs").Search(context.Background(), "doc-7", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if filterValue != "doc-7" {
		t.Fatalf("expected doc_id filter, got %v", filterValue)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	order := []int{results[0].Chunk.Index, results[1].Chunk.Index, results[2].Chunk.Index}
	if order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected order %v", order)
	}
	if results[2].Chunk.Position.Page != 2 {
		t.Fatalf("expected page from payload, got %+v", results[2].Chunk.Position)
	}
}

func TestMissingCollectionIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found: Collection docs doesn't exist!"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	results, err := client.Search(context.Background(), "doc-1", []float32{1}, 4)
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty result, got %v, %v", results, err)
	}
	if err := client.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
}
