// Package segment turns a stream of audio frames into discrete speech
// utterances. A VAD engine decides per frame whether speech is present; the
// segmenter accumulates speech (including trailing silence, so word endings
// are not clipped) and finalises an utterance once enough consecutive
// silence has been observed.
package segment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arcadian-ai/parley/internal/observe"
	"github.com/arcadian-ai/parley/pkg/audio"
	"github.com/arcadian-ai/parley/pkg/vad"
)

// state is the segmenter's capture state.
type state int

const (
	stateIdle state = iota
	stateAccumulating
)

// Config controls segmentation behavior.
type Config struct {
	// SecondsOfSilence is how much consecutive silence finalises an
	// utterance. Defaults to 1.5.
	SecondsOfSilence float64 `yaml:"secondsOfSilence"`

	// MinSpeechDuration discards auto-finalised utterances shorter than
	// this many seconds. Manual stops are exempt. Defaults to 0.5.
	MinSpeechDuration float64 `yaml:"minSpeechDuration"`
}

func (c *Config) applyDefaults() {
	if c.SecondsOfSilence <= 0 {
		c.SecondsOfSilence = 1.5
	}
	if c.MinSpeechDuration < 0 {
		c.MinSpeechDuration = 0.5
	}
}

// Handler receives finalised utterances. It is invoked outside the
// segmenter's lock, so it may call back into the segmenter.
type Handler func(utt audio.Utterance)

// Segmenter is a VAD-gated speech accumulator. Safe for one producer
// goroutine feeding frames plus concurrent Flush callers.
type Segmenter struct {
	cfg     Config
	engine  vad.Engine
	handler Handler
	log     *slog.Logger
	metrics *observe.Metrics

	mu             sync.Mutex
	st             state
	buf            []float32
	rate           int
	silenceSamples int
}

// New creates a Segmenter that classifies frames with engine and delivers
// finalised utterances to handler.
func New(cfg Config, engine vad.Engine, handler Handler, log *slog.Logger) *Segmenter {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Segmenter{
		cfg:     cfg,
		engine:  engine,
		handler: handler,
		log:     log,
		metrics: observe.Default(),
	}
}

// ProcessFrame feeds one mono frame through the segmenter. Frames may vary
// in length; the sample rate must stay constant within an utterance.
func (s *Segmenter) ProcessFrame(frame audio.Frame) {
	if len(frame.Samples) == 0 || frame.SampleRate <= 0 {
		return
	}
	isSpeech := s.engine.Classify(frame.Samples, frame.SampleRate)

	var finalised *audio.Utterance

	s.mu.Lock()
	switch {
	case isSpeech:
		if s.st == stateIdle {
			s.st = stateAccumulating
			s.rate = frame.SampleRate
		}
		s.buf = append(s.buf, frame.Samples...)
		s.silenceSamples = 0

	case s.st == stateAccumulating:
		// Keep trailing silence so the tail of the last word survives.
		s.buf = append(s.buf, frame.Samples...)
		s.silenceSamples += len(frame.Samples)
		if float64(s.silenceSamples) >= s.cfg.SecondsOfSilence*float64(s.rate) {
			finalised = s.takeLocked()
		}
	}
	s.mu.Unlock()

	if finalised == nil {
		return
	}
	if finalised.Duration() < time.Duration(s.cfg.MinSpeechDuration*float64(time.Second)) {
		s.log.Debug("discarding short segment",
			"duration", finalised.Duration(), "min", s.cfg.MinSpeechDuration)
		if s.metrics != nil && s.metrics.SegmentsDiscarded != nil {
			s.metrics.SegmentsDiscarded.Add(context.Background(), 1)
		}
		return
	}
	s.emit(*finalised, "vad")
}

// Flush finalises whatever is buffered right now, regardless of duration.
// Used for manual stop-listening. Returns true when an utterance was
// emitted.
func (s *Segmenter) Flush() bool {
	s.mu.Lock()
	utt := s.takeLocked()
	s.mu.Unlock()

	if utt == nil {
		return false
	}
	s.emit(*utt, "manual")
	return true
}

// Reset drops any buffered audio without emitting.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	s.buf = nil
	s.silenceSamples = 0
	s.st = stateIdle
	s.mu.Unlock()
}

// takeLocked snapshots and clears the buffer. Caller holds s.mu.
func (s *Segmenter) takeLocked() *audio.Utterance {
	if len(s.buf) == 0 {
		s.st = stateIdle
		s.silenceSamples = 0
		return nil
	}
	utt := &audio.Utterance{Samples: s.buf, SampleRate: s.rate}
	s.buf = nil
	s.silenceSamples = 0
	s.st = stateIdle
	return utt
}

func (s *Segmenter) emit(utt audio.Utterance, trigger string) {
	s.log.Debug("utterance finalised",
		"duration", utt.Duration(), "trigger", trigger)
	if s.metrics != nil && s.metrics.Utterances != nil {
		s.metrics.Utterances.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("trigger", trigger)))
	}
	if s.handler != nil {
		s.handler(utt)
	}
}
