package rag

import (
	"context"
	"sync"
)

// Store holds embedded knowledge chunks and answers similarity queries.
type Store interface {
	// Add indexes one embedded chunk.
	Add(ctx context.Context, c Chunk) error

	// Search returns up to k chunks with similarity >= threshold to the
	// query embedding, most similar first.
	Search(ctx context.Context, embedding []float32, k int, threshold float64) ([]Scored, error)

	// Len reports the number of indexed chunks.
	Len(ctx context.Context) (int, error)
}

// Compile-time assertion that MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the session-lifetime in-process store. Safe for concurrent
// use.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Add(_ context.Context, c Chunk) error {
	s.mu.Lock()
	s.chunks = append(s.chunks, c)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Search(_ context.Context, embedding []float32, k int, threshold float64) ([]Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TopK(embedding, s.chunks, k, threshold), nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}
