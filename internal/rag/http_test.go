package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strconv"
	"testing"
)

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return port
}

func TestHTTPEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q, want /v1/embeddings", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Input != "hello" {
			t.Errorf("input = %q, want hello", req.Input)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(serverPort(t, srv), nil)
	got, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(got, []float32{0.1, 0.2, 0.3}) {
		t.Errorf("embedding = %v", got)
	}
}

func TestHTTPEmbedder_FailureYieldsNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(serverPort(t, srv), nil)
	got, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed must not surface service errors, got %v", err)
	}
	if got != nil {
		t.Errorf("embedding = %v, want nil on failure", got)
	}
}

func TestHTTPReranker_Reorders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Documents) != 3 {
			t.Errorf("documents = %d, want 3", len(req.Documents))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.4},
				{"index": 1, "relevance_score": 0.1},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(serverPort(t, srv), nil)
	got := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	want := []string{"c", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rerank = %v, want %v", got, want)
	}
}

func TestHTTPReranker_FallsBackOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no model", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPReranker(serverPort(t, srv), nil)
	got := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rerank fallback = %v, want first topN %v", got, want)
	}
}

func TestHTTPReranker_EmptyResultsFallBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	r := NewHTTPReranker(serverPort(t, srv), nil)
	got := r.Rerank(context.Background(), "q", []string{"a", "b"}, 5)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rerank fallback = %v, want %v", got, want)
	}
}
