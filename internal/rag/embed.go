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

// Embedder produces one embedding vector per input text. A nil vector with a
// nil error means the service was unavailable; callers treat it as "no
// retrieval this turn".
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Compile-time assertion that HTTPEmbedder satisfies Embedder.
var _ Embedder = (*HTTPEmbedder)(nil)

// HTTPEmbedder calls an OpenAI-compatible /v1/embeddings endpoint on
// localhost.
type HTTPEmbedder struct {
	url     string
	http    *http.Client
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewHTTPEmbedder creates an embedder for the server on the given port.
func NewHTTPEmbedder(port int, log *slog.Logger) *HTTPEmbedder {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPEmbedder{
		url:     fmt.Sprintf("http://localhost:%d/v1/embeddings", port),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
		metrics: observe.Default(),
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding for text. Transport failures, non-200
// responses and malformed bodies yield (nil, nil) after logging.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	payload, err := json.Marshal(embeddingRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("rag: marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("rag: build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		e.log.Error("rag: embedding request failed", "error", err)
		e.metrics.RecordServiceError(ctx, "embedding", "transport")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.log.Error("rag: embedding returned non-OK status", "status", resp.StatusCode)
		e.metrics.RecordServiceError(ctx, "embedding", "status")
		return nil, nil
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.log.Error("rag: decoding embedding response failed", "error", err)
		e.metrics.RecordServiceError(ctx, "embedding", "decode")
		return nil, nil
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		e.log.Warn("rag: embedding response carried no vector")
		return nil, nil
	}
	return out.Data[0].Embedding, nil
}
