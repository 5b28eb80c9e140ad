package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// ScratchStore manages the transient WAV files the pipeline writes while an
// utterance is in flight to the ASR service. Files live under a single
// working directory and are deleted wholesale on Close — nothing is persisted
// across sessions.
//
// ScratchStore is safe for concurrent use.
type ScratchStore struct {
	dir string

	mu    sync.Mutex
	files []string
}

// NewScratchStore creates (if necessary) the working directory and returns a
// store rooted there.
func NewScratchStore(dir string) (*ScratchStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("audio: scratch dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audio: create scratch dir %q: %w", dir, err)
	}
	return &ScratchStore{dir: dir}, nil
}

// Put writes the utterance as a 16-bit mono WAV file named asr-<uuid>.wav and
// returns its path.
func (s *ScratchStore) Put(utt Utterance) (string, error) {
	if len(utt.Samples) == 0 {
		return "", fmt.Errorf("audio: refusing to write empty utterance")
	}

	path := filepath.Join(s.dir, fmt.Sprintf("asr-%s.wav", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("audio: create %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, utt.SampleRate, 16, 1, 1)
	pcm := FloatToPCM16(utt.Samples)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: utt.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)),
	}
	for i, v := range pcm {
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return "", fmt.Errorf("audio: encode %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("audio: finalise %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("audio: close %q: %w", path, err)
	}

	s.mu.Lock()
	s.files = append(s.files, path)
	s.mu.Unlock()
	return path, nil
}

// Close deletes every file the store has written. Failures to delete are
// logged, not returned — teardown must not abort on a stuck file handle.
func (s *ScratchStore) Close() error {
	s.mu.Lock()
	files := s.files
	s.files = nil
	s.mu.Unlock()

	for _, path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("scratch store: failed to delete file", "path", path, "err", err)
		}
	}
	return nil
}
