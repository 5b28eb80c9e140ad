package asr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/arcadian-ai/parley/internal/observe"
	"github.com/arcadian-ai/parley/pkg/audio"
	"github.com/arcadian-ai/parley/pkg/textnorm"
)

// Compile-time assertion that HTTPClient satisfies Transcriber.
var _ Transcriber = (*HTTPClient)(nil)

// Inference parameters sent with every request, matching the whisper.cpp
// server defaults for short-utterance transcription.
const (
	inferenceTemperature    = "0.0"
	inferenceTemperatureInc = "0.2"
)

// HTTPClient transcribes utterances through a whisper.cpp server's
// /inference endpoint. The utterance is written to the scratch store first
// so a failed request leaves an inspectable WAV behind.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	scratch *audio.ScratchStore
	log     *slog.Logger
	metrics *observe.Metrics
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPTimeout overrides the request timeout. Defaults to 30s: whisper
// inference on CPU can take several seconds for a long utterance.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) HTTPOption {
	return func(c *HTTPClient) { c.log = log }
}

// NewHTTPClient creates a client for the whisper.cpp server listening on the
// given localhost port. Scratch WAV files go through store.
func NewHTTPClient(port int, store *audio.ScratchStore, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: fmt.Sprintf("http://localhost:%d", port),
		http:    &http.Client{Timeout: 30 * time.Second},
		scratch: store,
		log:     slog.Default(),
		metrics: observe.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe sends the utterance to the server and returns the sanitized
// transcript. Transport errors, non-200 responses and empty bodies all yield
// ("", nil) after logging.
func (c *HTTPClient) Transcribe(ctx context.Context, utt audio.Utterance) (string, error) {
	if len(utt.Samples) == 0 {
		return "", nil
	}

	path, err := c.scratch.Put(utt)
	if err != nil {
		c.log.Error("asr: writing scratch wav failed", "error", err)
		c.metrics.RecordServiceError(ctx, "asr", "scratch")
		return "", nil
	}

	body, contentType, err := c.buildForm(path)
	if err != nil {
		c.log.Error("asr: building multipart form failed", "error", err)
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("asr: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("asr: inference request failed", "error", err)
		c.metrics.RecordServiceError(ctx, "asr", "transport")
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("asr: inference returned non-OK status", "status", resp.StatusCode)
		c.metrics.RecordServiceError(ctx, "asr", "status")
		return "", nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("asr: reading inference response failed", "error", err)
		c.metrics.RecordServiceError(ctx, "asr", "read")
		return "", nil
	}

	if c.metrics.ASRDuration != nil {
		c.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
	}

	text := textnorm.Sanitize(string(raw))
	c.log.Debug("asr: transcription complete",
		"duration", time.Since(start), "chars", len(text))
	return text, nil
}

// buildForm assembles the multipart request body: the WAV file plus the
// fixed inference parameters.
func (c *HTTPClient) buildForm(wavPath string) (io.Reader, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	for field, value := range map[string]string{
		"temperature":     inferenceTemperature,
		"temperature_inc": inferenceTemperatureInc,
		"response_format": "text",
	} {
		if err := w.WriteField(field, value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
