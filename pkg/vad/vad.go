// Package vad provides voice activity detection for the speech segmenter.
//
// Detection backends form a closed set behind a single Classify capability:
// a disabled pass-through for push-to-talk setups, a stateless RMS energy
// gate, and two hop-based frame classifiers (an energy/zero-crossing gate
// modelled after WebRTC-style detectors, and an externally registered neural
// frame scorer). Backends that cannot be constructed on the current
// platform/build collapse to the energy gate at construction time with a
// logged warning — never at call time, and never as a hard failure.
package vad

import (
	"log/slog"

	"github.com/arcadian-ai/parley/pkg/audio"
)

// Mode selects the detection backend.
type Mode string

const (
	// ModeDisabled treats every frame as speech. Used when the host drives
	// recording manually (push-to-talk).
	ModeDisabled Mode = "disabled"

	// ModeEnergy classifies each frame by RMS energy against a threshold.
	ModeEnergy Mode = "energy"

	// ModeGate runs the energy/zero-crossing hop classifier on audio
	// resampled to the model rate.
	ModeGate Mode = "gate"

	// ModeNeural runs an externally registered neural frame scorer. Falls
	// back to ModeEnergy when no scorer is registered.
	ModeNeural Mode = "neural"
)

// IsValid reports whether m is a recognised detection mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeDisabled, ModeEnergy, ModeGate, ModeNeural:
		return true
	}
	return false
}

// Config holds the parameters for constructing an Engine.
type Config struct {
	// Mode selects the backend. Default: ModeEnergy.
	Mode Mode

	// EnergyThreshold is the RMS level at or above which a frame counts as
	// speech in ModeEnergy (and the floor for the gate scorer). Range [0, 1].
	EnergyThreshold float64

	// ModelSampleRate is the fixed rate the hop classifiers operate at.
	// Input frames at other rates are sinc-resampled. Default: 16000.
	ModelSampleRate int

	// HopSize is the number of samples (at ModelSampleRate) consumed per
	// classification. Default: 256 (16 ms at 16 kHz).
	HopSize int

	// SpeechProbability is the scorer probability at or above which a hop is
	// classified as speech. Default: 0.5.
	SpeechProbability float64
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeEnergy
	}
	if c.ModelSampleRate <= 0 {
		c.ModelSampleRate = 16000
	}
	if c.HopSize <= 0 {
		c.HopSize = 256
	}
	if c.SpeechProbability <= 0 {
		c.SpeechProbability = 0.5
	}
}

// Engine classifies audio frames as speech or silence.
//
// Implementations with internal buffering (the hop classifiers) serialise
// access to that buffer themselves, independently of any lock the caller
// holds around its own accumulation state.
type Engine interface {
	// Classify reports whether the frame contains speech. Hop-based backends
	// return false while their internal buffer holds less than one hop
	// ("no decision yet").
	Classify(samples []float32, sampleRate int) bool
}

// New constructs the Engine selected by cfg.Mode. Backends that cannot be
// initialised degrade to the energy gate; New never fails.
func New(cfg Config) Engine {
	cfg.applyDefaults()

	switch cfg.Mode {
	case ModeDisabled:
		return disabled{}
	case ModeEnergy:
		return &Energy{Threshold: cfg.EnergyThreshold}
	case ModeGate:
		return newHopClassifier(cfg, &GateScorer{EnergyFloor: cfg.EnergyThreshold})
	case ModeNeural:
		scorer, err := newNeuralScorer(cfg)
		if err != nil {
			slog.Warn("vad: neural backend unavailable, falling back to energy detection", "err", err)
			return &Energy{Threshold: cfg.EnergyThreshold}
		}
		return newHopClassifier(cfg, scorer)
	default:
		slog.Warn("vad: unknown mode, falling back to energy detection", "mode", cfg.Mode)
		return &Energy{Threshold: cfg.EnergyThreshold}
	}
}

// disabled is the pass-through backend: every frame is speech.
type disabled struct{}

func (disabled) Classify([]float32, int) bool { return true }

// Energy is the stateless RMS gate. A frame whose RMS is greater than or
// equal to Threshold is speech; the boundary case counts as speech.
type Energy struct {
	Threshold float64
}

// Classify implements Engine.
func (e *Energy) Classify(samples []float32, _ int) bool {
	return audio.RMS(samples) >= e.Threshold
}
