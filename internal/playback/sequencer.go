// Package playback serializes asynchronously produced audio clips into
// strict in-order, gapless, non-overlapping output. Synthesis calls finish
// in whatever order the services allow; each queue here guarantees that
// clips become audible one at a time, each starting only after the previous
// clip's computed duration has elapsed.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arcadian-ai/parley/internal/lipsync"
	"github.com/arcadian-ai/parley/internal/observe"
	"github.com/arcadian-ai/parley/pkg/audio"
)

// Item is one clip awaiting playback. Duration may be zero; it is then
// computed from the WAV header on enqueue. Frames optionally carries
// per-frame blendshape weights for the animation process.
type Item struct {
	Audio    []byte
	Duration time.Duration
	Frames   [][]float32
}

// Sink starts audible output for one clip. The host owns the audio device;
// Play must not block for the clip's duration.
type Sink interface {
	Play(item Item)
}

// FrameSubmitter delivers blendshape frames to the external animation
// process ahead of the ready handshake.
type FrameSubmitter func(frames [][]float32)

// Sequencer is one FIFO playback queue. Safe for concurrent use.
type Sequencer struct {
	sink     Sink
	name     string
	log      *slog.Logger
	metrics  *observe.Metrics
	gate     *lipsync.ReadyGate
	submit   FrameSubmitter
	postRoll time.Duration

	mu      sync.Mutex
	queue   []Item
	playing bool
	timer   *time.Timer
	closed  bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithQueueName labels the queue in logs and metrics.
func WithQueueName(name string) Option {
	return func(s *Sequencer) { s.name = name }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Sequencer) { s.log = log }
}

// NewSequencer creates a plain audio queue.
func NewSequencer(sink Sink, opts ...Option) *Sequencer {
	s := &Sequencer{
		sink:    sink,
		name:    "audio",
		log:     slog.Default(),
		metrics: observe.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewBlendshapeSequencer creates a queue whose advancement waits for the
// animation process's ready handshake (or its timeout) after submitting the
// clip's frames.
func NewBlendshapeSequencer(sink Sink, submit FrameSubmitter, gate *lipsync.ReadyGate, opts ...Option) *Sequencer {
	s := NewSequencer(sink, opts...)
	if s.name == "audio" {
		s.name = "blendshape"
	}
	s.gate = gate
	s.submit = submit
	return s
}

// NewFacialSequencer creates a queue for the facial-animation engine, which
// needs a short post-roll pad after each clip before the next may start.
func NewFacialSequencer(sink Sink, postRoll time.Duration, opts ...Option) *Sequencer {
	s := NewSequencer(sink, opts...)
	if s.name == "audio" {
		s.name = "facial"
	}
	s.postRoll = postRoll
	return s
}

// Enqueue adds a clip and starts it immediately when nothing is playing.
// Items without a precomputed duration get it from their WAV header; clips
// with an unreadable header are dropped with a warning.
func (s *Sequencer) Enqueue(item Item) {
	if item.Duration <= 0 {
		info, err := audio.DecodeInfo(item.Audio)
		if err != nil {
			s.log.Warn("playback: dropping clip with unreadable header",
				"queue", s.name, "error", err)
			return
		}
		item.Duration = info.Duration()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, item)
	s.mu.Unlock()

	if s.metrics.PlaybackQueueDepth != nil {
		s.metrics.PlaybackQueueDepth.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("queue", s.name)))
	}
	s.advance()
}

// advance starts the next clip unless one is already audible or the queue
// is empty.
func (s *Sequencer) advance() {
	s.mu.Lock()
	if s.closed || s.playing || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	s.playing = true
	s.mu.Unlock()

	if s.metrics.PlaybackQueueDepth != nil {
		s.metrics.PlaybackQueueDepth.Add(context.Background(), -1,
			metric.WithAttributes(attribute.String("queue", s.name)))
	}

	if s.gate != nil {
		s.gate.Arm()
		if s.submit != nil {
			s.submit(item.Frames)
		}
		s.gate.Wait()
	}

	s.sink.Play(item)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = time.AfterFunc(item.Duration+s.postRoll, s.onFinished)
	s.mu.Unlock()
}

// onFinished runs when the current clip's duration has elapsed.
func (s *Sequencer) onFinished() {
	s.mu.Lock()
	s.playing = false
	s.timer = nil
	s.mu.Unlock()
	s.advance()
}

// Len reports the number of queued clips, excluding the one playing.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close drops all queued clips and cancels the completion timer. Already
// audible output is the host's to stop.
func (s *Sequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.playing = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}
