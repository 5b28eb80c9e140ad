// Package lipsync fetches per-frame facial blendshape data for synthesized
// audio and coordinates the ready handshake with the external animation
// process.
package lipsync

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

// Fetcher maps a WAV clip to per-frame blendshape weights. nil frames with
// a nil error means the service was unavailable; playback proceeds
// audio-only.
type Fetcher interface {
	Blendshapes(ctx context.Context, wav []byte) ([][]float32, error)
}

// Compile-time assertion that Client satisfies Fetcher.
var _ Fetcher = (*Client)(nil)

// Client posts raw WAV audio to a localhost blendshape service.
type Client struct {
	url     string
	http    *http.Client
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewClient creates a blendshape client for the server on the given port.
func NewClient(port int, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url:     fmt.Sprintf("http://localhost:%d/audio_to_blendshapes", port),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
		metrics: observe.Default(),
	}
}

type blendshapeResponse struct {
	Blendshapes [][]float32 `json:"blendshapes"`
}

// Blendshapes returns the per-frame weights for the clip. All failures
// yield (nil, nil) after logging so the clip still plays without animation.
func (c *Client) Blendshapes(ctx context.Context, wav []byte) ([][]float32, error) {
	if len(wav) == 0 {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("lipsync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("lipsync: blendshape request failed, playing audio-only", "error", err)
		c.metrics.RecordServiceError(ctx, "lipsync", "transport")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("lipsync: blendshape service returned non-OK status, playing audio-only",
			"status", resp.StatusCode)
		c.metrics.RecordServiceError(ctx, "lipsync", "status")
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Warn("lipsync: reading blendshape response failed, playing audio-only", "error", err)
		c.metrics.RecordServiceError(ctx, "lipsync", "read")
		return nil, nil
	}

	var out blendshapeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.log.Warn("lipsync: decoding blendshape response failed, playing audio-only", "error", err)
		c.metrics.RecordServiceError(ctx, "lipsync", "decode")
		return nil, nil
	}
	return out.Blendshapes, nil
}
