// Package rag implements retrieval-augmented prompting for NPC dialogue:
// knowledge text is chunked into overlapping sentence windows, embedded once
// at session start, and queried per user message so the most relevant
// passages can be injected into the chat prompt.
package rag

import (
	"math"
	"sort"
)

// Chunk is one embeddable unit of knowledge text.
type Chunk struct {
	Text      string
	Embedding []float32
}

// Scored is a chunk with its similarity to a query.
type Scored struct {
	Chunk
	Score float64
}

// CosineSimilarity returns the cosine of the angle between a and b. Length
// mismatch or a zero-magnitude vector yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK scores every chunk against the query embedding and returns up to k
// results with score >= threshold, ordered by descending score. Equal scores
// keep their original relative order.
func TopK(query []float32, chunks []Chunk, k int, threshold float64) []Scored {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}
	scored := make([]Scored, 0, len(chunks))
	for _, c := range chunks {
		s := CosineSimilarity(query, c.Embedding)
		if s >= threshold {
			scored = append(scored, Scored{Chunk: c, Score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
