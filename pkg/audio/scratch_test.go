package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScratchStore_PutAndClose(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "scratch")
	s, err := NewScratchStore(dir)
	if err != nil {
		t.Fatalf("NewScratchStore: %v", err)
	}

	utt := Utterance{Samples: make([]float32, 1600), SampleRate: 16000}
	path, err := s.Put(utt)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "asr-") || !strings.HasSuffix(path, ".wav") {
		t.Errorf("unexpected scratch file name %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("scratch file missing: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("scratch file should be deleted on Close")
	}
}

func TestScratchStore_RejectsEmptyUtterance(t *testing.T) {
	t.Parallel()

	s, err := NewScratchStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewScratchStore: %v", err)
	}
	if _, err := s.Put(Utterance{SampleRate: 16000}); err == nil {
		t.Error("expected an error for an empty utterance")
	}
}
