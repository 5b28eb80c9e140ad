// Package mock provides a scripted Transcriber for tests.
package mock

import (
	"context"
	"sync"

	"github.com/arcadian-ai/parley/internal/asr"
	"github.com/arcadian-ai/parley/pkg/audio"
)

// Compile-time assertion that Transcriber satisfies asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

// Transcriber returns scripted transcripts in order, then the last one
// forever. It records every utterance it receives.
type Transcriber struct {
	Transcripts []string
	Err         error

	mu    sync.Mutex
	calls int
	Seen  []audio.Utterance
}

func (m *Transcriber) Transcribe(_ context.Context, utt audio.Utterance) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Seen = append(m.Seen, utt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Transcripts) == 0 {
		return "", nil
	}
	i := m.calls
	if i >= len(m.Transcripts) {
		i = len(m.Transcripts) - 1
	}
	m.calls++
	return m.Transcripts[i], nil
}

// Calls reports how many times Transcribe ran.
func (m *Transcriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
