// This file contains the native Transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/arcadian-ai/parley/internal/observe"
	"github.com/arcadian-ai/parley/pkg/audio"
	"github.com/arcadian-ai/parley/pkg/textnorm"
)

// Compile-time assertion that Native satisfies Transcriber.
var _ Transcriber = (*Native)(nil)

// whisperRate is the only sample rate whisper.cpp models accept.
const whisperRate = 16000

// Native transcribes in-process through the whisper.cpp bindings. The model
// is loaded once and shared; each Transcribe call creates its own context,
// so concurrent calls are safe.
type Native struct {
	language string
	log      *slog.Logger
	metrics  *observe.Metrics

	mu     sync.Mutex
	model  whisperlib.Model
	closed bool
}

// NativeOption configures a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeLogger sets the logger. Defaults to slog.Default().
func WithNativeLogger(log *slog.Logger) NativeOption {
	return func(n *Native) { n.log = log }
}

// NewNative loads the whisper model from modelPath. The caller must call
// Close when done.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("asr: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("asr: load model %q: %w", modelPath, err)
	}
	n := &Native{
		language: "en",
		log:      slog.Default(),
		metrics:  observe.Default(),
		model:    model,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the model. Transcribe returns an error afterwards.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.model.Close()
}

// Transcribe runs whisper inference on the utterance and returns the
// sanitized text. Inference failures yield ("", nil) after logging.
func (n *Native) Transcribe(ctx context.Context, utt audio.Utterance) (string, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return "", errors.New("asr: transcriber is closed")
	}
	model := n.model
	n.mu.Unlock()

	if len(utt.Samples) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("asr: %w", err)
	}

	samples := utt.Samples
	if utt.SampleRate != whisperRate {
		samples = audio.ResampleSinc(samples, utt.SampleRate, whisperRate)
	}

	start := time.Now()

	// Contexts are not thread-safe; the model is.
	wctx, err := model.NewContext()
	if err != nil {
		n.log.Error("asr: creating whisper context failed", "error", err)
		n.metrics.RecordServiceError(ctx, "asr", "context")
		return "", nil
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		n.log.Warn("asr: setting language failed, using model default",
			"language", n.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		n.log.Error("asr: whisper inference failed", "error", err)
		n.metrics.RecordServiceError(ctx, "asr", "inference")
		return "", nil
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			n.log.Error("asr: reading whisper segment failed", "error", err)
			n.metrics.RecordServiceError(ctx, "asr", "segment")
			return "", nil
		}
		if t := strings.TrimSpace(segment.Text); t != "" {
			parts = append(parts, t)
		}
	}

	if n.metrics.ASRDuration != nil {
		n.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
	}
	return textnorm.Sanitize(strings.Join(parts, " ")), nil
}
