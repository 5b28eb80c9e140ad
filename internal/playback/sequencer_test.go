package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/arcadian-ai/parley/internal/lipsync"
	"github.com/arcadian-ai/parley/pkg/audio"
)

// recordingSink logs each clip's start time.
type recordingSink struct {
	mu     sync.Mutex
	starts []time.Time
	items  []Item
}

func (r *recordingSink) Play(item Item) {
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.items = append(r.items, item)
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() ([]time.Time, []Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.starts...), append([]Item(nil), r.items...)
}

// clip builds a playable item with the given duration.
func clip(d time.Duration) Item {
	return Item{Duration: d}
}

func TestSequencer_StrictFIFOWithoutOverlap(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewSequencer(sink)
	defer s.Close()

	const d = 30 * time.Millisecond
	s.Enqueue(clip(d))
	s.Enqueue(clip(d))
	s.Enqueue(clip(d))

	deadline := time.After(time.Second)
	for {
		starts, _ := sink.snapshot()
		if len(starts) == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d of 3 clips started", len(starts))
		case <-time.After(5 * time.Millisecond):
		}
	}

	starts, _ := sink.snapshot()
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		if gap < d {
			t.Errorf("clip %d started %v after clip %d, want >= %v (no overlap)",
				i, gap, i-1, d)
		}
	}
}

func TestSequencer_EnqueueWhilePlayingQueues(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewSequencer(sink)
	defer s.Close()

	s.Enqueue(clip(50 * time.Millisecond))
	s.Enqueue(clip(50 * time.Millisecond))

	starts, _ := sink.snapshot()
	if len(starts) != 1 {
		t.Fatalf("clips audible immediately = %d, want 1", len(starts))
	}
	if s.Len() != 1 {
		t.Errorf("queued clips = %d, want 1", s.Len())
	}
}

func TestSequencer_DurationFromWAVHeader(t *testing.T) {
	t.Parallel()

	// 1600 samples at 16 kHz: a 100 ms clip.
	samples := make([]float32, 1600)
	wav := audio.EncodeWAV(samples, 16000)

	sink := &recordingSink{}
	s := NewSequencer(sink)
	defer s.Close()

	s.Enqueue(Item{Audio: wav})
	_, items := sink.snapshot()
	if len(items) != 1 {
		t.Fatal("clip did not start")
	}
	if items[0].Duration != 100*time.Millisecond {
		t.Errorf("computed duration = %v, want 100ms", items[0].Duration)
	}
}

func TestSequencer_DropsUnreadableClip(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewSequencer(sink)
	defer s.Close()

	s.Enqueue(Item{Audio: []byte("not a wav")})
	if starts, _ := sink.snapshot(); len(starts) != 0 {
		t.Error("unreadable clip must not play")
	}
	if s.Len() != 0 {
		t.Error("unreadable clip must not stay queued")
	}
}

func TestSequencer_CloseDropsQueue(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := NewSequencer(sink)

	s.Enqueue(clip(time.Hour))
	s.Enqueue(clip(time.Hour))
	s.Close()

	if s.Len() != 0 {
		t.Errorf("queued clips after Close = %d, want 0", s.Len())
	}
	// Enqueue after Close is a no-op.
	s.Enqueue(clip(time.Millisecond))
	if starts, _ := sink.snapshot(); len(starts) != 1 {
		t.Errorf("clips played = %d, want only the pre-Close one", len(starts))
	}
}

func TestBlendshapeSequencer_SubmitsFramesBeforePlay(t *testing.T) {
	t.Parallel()

	gate := lipsync.NewReadyGate(time.Second, nil)

	var (
		mu        sync.Mutex
		submitted [][]float32
	)
	submit := func(frames [][]float32) {
		mu.Lock()
		submitted = frames
		mu.Unlock()
		gate.Signal()
	}

	sink := &recordingSink{}
	s := NewBlendshapeSequencer(sink, submit, gate)
	defer s.Close()

	frames := [][]float32{{0.1}, {0.2}}
	s.Enqueue(Item{Duration: 10 * time.Millisecond, Frames: frames})

	if starts, _ := sink.snapshot(); len(starts) != 1 {
		t.Fatal("gated clip did not start after ready signal")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(submitted) != 2 {
		t.Errorf("submitted frames = %d, want 2", len(submitted))
	}
}

func TestBlendshapeSequencer_TimeoutStillPlays(t *testing.T) {
	t.Parallel()

	gate := lipsync.NewReadyGate(20*time.Millisecond, nil)
	sink := &recordingSink{}
	s := NewBlendshapeSequencer(sink, func([][]float32) {}, gate)
	defer s.Close()

	start := time.Now()
	s.Enqueue(Item{Duration: 10 * time.Millisecond})
	if starts, _ := sink.snapshot(); len(starts) != 1 {
		t.Fatal("clip must play after handshake timeout")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("clip started before the handshake timeout elapsed")
	}
}
