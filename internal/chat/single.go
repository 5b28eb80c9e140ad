package chat

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

// Compile-time assertion that SingleShotClient satisfies Completer.
var _ Completer = (*SingleShotClient)(nil)

// SingleShotClient requests one complete response per call from an
// OpenAI-compatible /v1/chat/completions endpoint. Any structural failure
// (transport, non-200, bad JSON, missing field, empty content) yields
// ("", nil) after logging.
type SingleShotClient struct {
	url     string
	http    *http.Client
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewSingleShotClient creates a client for the chat server on the given
// localhost port.
func NewSingleShotClient(port int, log *slog.Logger) *SingleShotClient {
	if log == nil {
		log = slog.Default()
	}
	return &SingleShotClient{
		url:     fmt.Sprintf("http://localhost:%d/v1/chat/completions", port),
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
		metrics: observe.Default(),
	}
}

type completionRequest struct {
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *SingleShotClient) Complete(ctx context.Context, messages []Message, _ TokenListener) (string, error) {
	payload, err := json.Marshal(completionRequest{Stream: false, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat: marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("chat: build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("chat: completion request failed", "error", err)
		c.metrics.RecordServiceError(ctx, "chat", "transport")
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("chat: completion returned non-OK status", "status", resp.StatusCode)
		c.metrics.RecordServiceError(ctx, "chat", "status")
		return "", nil
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Error("chat: decoding completion response failed", "error", err)
		c.metrics.RecordServiceError(ctx, "chat", "decode")
		return "", nil
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		c.log.Warn("chat: completion response carried no content")
		return "", nil
	}

	if c.metrics.ChatDuration != nil {
		c.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
	}
	return out.Choices[0].Message.Content, nil
}
