package rag

import (
	"context"
	"log/slog"
)

// Retriever answers "which knowledge passages matter for this message".
// It embeds the query, pulls the top K candidates from the store and
// optionally narrows them to N with a reranker.
type Retriever struct {
	embedder  Embedder
	store     Store
	reranker  Reranker // nil disables the rerank stage
	topK      int
	topN      int
	threshold float64
	log       *slog.Logger
}

// NewRetriever wires a retriever. reranker may be nil; then the top N of the
// similarity ordering are returned directly.
func NewRetriever(embedder Embedder, store Store, reranker Reranker, topK, topN int, threshold float64, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	if topN > topK {
		topN = topK
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		reranker:  reranker,
		topK:      topK,
		topN:      topN,
		threshold: threshold,
		log:       log,
	}
}

// Retrieve returns up to topN passages relevant to query, best first. Every
// failure path collapses to an empty result: the conversation proceeds
// without retrieval rather than failing.
func (r *Retriever) Retrieve(ctx context.Context, query string) []string {
	if query == "" {
		return nil
	}
	emb, err := r.embedder.Embed(ctx, query)
	if err != nil || len(emb) == 0 {
		if err != nil {
			r.log.Error("rag: embedding query failed", "error", err)
		}
		return nil
	}

	scored, err := r.store.Search(ctx, emb, r.topK, r.threshold)
	if err != nil {
		r.log.Error("rag: store search failed", "error", err)
		return nil
	}
	if len(scored) == 0 {
		return nil
	}

	docs := make([]string, len(scored))
	for i, s := range scored {
		docs[i] = s.Text
	}

	if r.reranker == nil {
		if len(docs) > r.topN {
			docs = docs[:r.topN]
		}
		return docs
	}
	return r.reranker.Rerank(ctx, query, docs, r.topN)
}
