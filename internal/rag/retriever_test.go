package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// fixedEmbedder maps texts to canned vectors.
type fixedEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func seededStore(t *testing.T, chunks ...Chunk) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	for _, c := range chunks {
		if err := s.Add(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestRetriever_TopNWithoutReranker(t *testing.T) {
	t.Parallel()

	store := seededStore(t,
		Chunk{Text: "best", Embedding: []float32{1, 0}},
		Chunk{Text: "good", Embedding: []float32{0.8, 0.2}},
		Chunk{Text: "weak", Embedding: []float32{0.2, 0.8}},
	)
	emb := &fixedEmbedder{vectors: map[string][]float32{"query": {1, 0}}}

	r := NewRetriever(emb, store, nil, 3, 2, 0.1, nil)
	got := r.Retrieve(context.Background(), "query")
	want := []string{"best", "good"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Retrieve = %v, want %v", got, want)
	}
}

func TestRetriever_EmbedderFailureYieldsNothing(t *testing.T) {
	t.Parallel()

	store := seededStore(t, Chunk{Text: "x", Embedding: []float32{1}})
	emb := &fixedEmbedder{err: errors.New("down")}

	r := NewRetriever(emb, store, nil, 3, 2, 0, nil)
	if got := r.Retrieve(context.Background(), "query"); got != nil {
		t.Errorf("Retrieve with dead embedder = %v, want nil", got)
	}
}

func TestRetriever_EmptyQueryShortCircuits(t *testing.T) {
	t.Parallel()

	r := NewRetriever(&fixedEmbedder{}, NewMemoryStore(), nil, 3, 2, 0, nil)
	if got := r.Retrieve(context.Background(), ""); got != nil {
		t.Errorf("Retrieve(\"\") = %v, want nil", got)
	}
}

// reverseReranker flips document order, ignoring scores entirely.
type reverseReranker struct{}

func (reverseReranker) Rerank(_ context.Context, _ string, docs []string, topN int) []string {
	out := make([]string, 0, topN)
	for i := len(docs) - 1; i >= 0 && len(out) < topN; i-- {
		out = append(out, docs[i])
	}
	return out
}

func TestRetriever_RerankerNarrowsCandidates(t *testing.T) {
	t.Parallel()

	store := seededStore(t,
		Chunk{Text: "a", Embedding: []float32{1, 0}},
		Chunk{Text: "b", Embedding: []float32{0.9, 0.1}},
		Chunk{Text: "c", Embedding: []float32{0.8, 0.2}},
	)
	emb := &fixedEmbedder{vectors: map[string][]float32{"query": {1, 0}}}

	r := NewRetriever(emb, store, reverseReranker{}, 3, 2, 0, nil)
	got := r.Retrieve(context.Background(), "query")
	want := []string{"c", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Retrieve = %v, want %v", got, want)
	}
}
