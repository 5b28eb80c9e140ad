package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcadian-ai/parley/internal/observe"
)

// Reranker reorders retrieved documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) []string
}

// Compile-time assertion that HTTPReranker satisfies Reranker.
var _ Reranker = (*HTTPReranker)(nil)

// HTTPReranker calls a /v1/rerank endpoint on localhost. On any failure it
// falls back to the first topN documents in their incoming order, so a dead
// reranker degrades retrieval quality but never empties it.
type HTTPReranker struct {
	url     string
	http    *http.Client
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewHTTPReranker creates a reranker client for the server on the given port.
func NewHTTPReranker(port int, log *slog.Logger) *HTTPReranker {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPReranker{
		url:     fmt.Sprintf("http://localhost:%d/v1/rerank", port),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
		metrics: observe.Default(),
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns up to topN documents ordered by the service's relevance
// scoring. Failure of any kind returns the first topN documents unchanged.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) []string {
	if len(documents) == 0 || topN <= 0 {
		return nil
	}
	fallback := func() []string {
		if len(documents) > topN {
			return documents[:topN]
		}
		return documents
	}

	payload, err := json.Marshal(rerankRequest{Query: query, Documents: documents, TopN: topN})
	if err != nil {
		r.log.Error("rag: marshal rerank request failed", "error", err)
		return fallback()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		r.log.Error("rag: build rerank request failed", "error", err)
		return fallback()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		r.log.Warn("rag: rerank request failed, keeping retrieval order", "error", err)
		r.metrics.RecordServiceError(ctx, "reranker", "transport")
		return fallback()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("rag: rerank returned non-OK status, keeping retrieval order",
			"status", resp.StatusCode)
		r.metrics.RecordServiceError(ctx, "reranker", "status")
		return fallback()
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		r.log.Warn("rag: decoding rerank response failed, keeping retrieval order", "error", err)
		r.metrics.RecordServiceError(ctx, "reranker", "decode")
		return fallback()
	}
	if len(out.Results) == 0 {
		return fallback()
	}

	reranked := make([]string, 0, topN)
	for _, res := range out.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			continue
		}
		reranked = append(reranked, documents[res.Index])
		if len(reranked) == topN {
			break
		}
	}
	if len(reranked) == 0 {
		return fallback()
	}
	return reranked
}
