// Package tts converts sanitized text chunks into WAV audio through a local
// speech-synthesis service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcadian-ai/parley/internal/observe"
)

// Synthesizer turns text into WAV bytes. Empty input, unset voice and every
// service failure yield (nil, nil): callers observe one completion path and
// branch only on emptiness.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Compile-time assertion that Client satisfies Synthesizer.
var _ Synthesizer = (*Client)(nil)

// Client posts synthesis requests to an OpenAI-compatible /v1/audio/speech
// endpoint on localhost.
type Client struct {
	url     string
	voice   string
	http    *http.Client
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewClient creates a synthesis client for the server on the given port,
// speaking with the named voice.
func NewClient(port int, voice string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url:     fmt.Sprintf("http://localhost:%d/v1/audio/speech", port),
		voice:   voice,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
		metrics: observe.Default(),
	}
}

type speechRequest struct {
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize returns the WAV bytes for text. An empty text or unset voice
// short-circuits without a network call.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" || c.voice == "" {
		return nil, nil
	}

	payload, err := json.Marshal(speechRequest{
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tts: build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("tts: speech request failed", "error", err)
		c.metrics.RecordServiceError(ctx, "tts", "transport")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("tts: speech returned non-OK status", "status", resp.StatusCode)
		c.metrics.RecordServiceError(ctx, "tts", "status")
		return nil, nil
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("tts: reading speech response failed", "error", err)
		c.metrics.RecordServiceError(ctx, "tts", "read")
		return nil, nil
	}
	if len(wav) == 0 {
		c.log.Warn("tts: speech response carried no audio")
		return nil, nil
	}

	if c.metrics.TTSDuration != nil {
		c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	c.log.Debug("tts: synthesis complete", "bytes", len(wav), "took", time.Since(start))
	return wav, nil
}
