// Package asr provides speech-to-text clients for the conversation pipeline.
// Two implementations exist: an HTTP client for a whisper.cpp server and a
// native CGO-backed recognizer sharing one loaded model.
//
// Transcription failures are downgraded to an empty transcript: the pipeline
// treats "nothing was understood" and "the service failed" identically, and
// the cause is logged rather than propagated.
package asr

import (
	"context"

	"github.com/arcadian-ai/parley/pkg/audio"
)

// Transcriber converts one utterance to text. Implementations return
// ("", nil) on degraded service rather than an error; a non-nil error is
// reserved for misuse (nil utterance, closed client).
type Transcriber interface {
	Transcribe(ctx context.Context, utt audio.Utterance) (string, error)
}
