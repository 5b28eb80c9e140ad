package vad

import (
	"errors"
	"math"
	"testing"
)

// constFrame builds a frame whose RMS is exactly level.
func constFrame(level float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = level
		} else {
			out[i] = -level
		}
	}
	return out
}

func TestEnergy_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	e := &Energy{Threshold: 0.1}

	if !e.Classify(constFrame(0.2, 512), 16000) {
		t.Error("frame above threshold should be speech")
	}
	if e.Classify(constFrame(0.05, 512), 16000) {
		t.Error("frame below threshold should be silence")
	}
	// RMS exactly equal to the threshold counts as speech.
	if !e.Classify(constFrame(0.1, 512), 16000) {
		t.Error("frame exactly at threshold should be speech")
	}
}

func TestDisabled_AlwaysSpeech(t *testing.T) {
	t.Parallel()

	d := New(Config{Mode: ModeDisabled})
	if !d.Classify(nil, 16000) {
		t.Error("disabled VAD must classify every frame as speech")
	}
	if !d.Classify(constFrame(0, 512), 16000) {
		t.Error("disabled VAD must classify silence as speech")
	}
}

func TestNew_NeuralFallsBackToEnergy(t *testing.T) {
	// Not parallel: mutates the package-level neural registration.
	RegisterNeuralScorer(nil)

	e := New(Config{Mode: ModeNeural, EnergyThreshold: 0.1})
	if _, ok := e.(*Energy); !ok {
		t.Fatalf("expected fallback to *Energy, got %T", e)
	}
}

func TestNew_NeuralFactoryFailureFallsBack(t *testing.T) {
	RegisterNeuralScorer(func(Config) (Scorer, error) {
		return nil, errors.New("model file missing")
	})
	t.Cleanup(func() { RegisterNeuralScorer(nil) })

	e := New(Config{Mode: ModeNeural, EnergyThreshold: 0.1})
	if _, ok := e.(*Energy); !ok {
		t.Fatalf("expected fallback to *Energy, got %T", e)
	}
}

func TestHopClassifier_NoDecisionUntilFullHop(t *testing.T) {
	t.Parallel()

	h := newHopClassifier(Config{ModelSampleRate: 16000, HopSize: 256, SpeechProbability: 0.5},
		&GateScorer{EnergyFloor: 0.01})

	// 100 samples at the model rate: buffer underfilled, no decision.
	if h.Classify(constFrame(0.5, 100), 16000) {
		t.Error("underfilled hop buffer must return false")
	}
	// Another 200 samples completes the hop; loud speech-like input.
	if !h.Classify(constFrame(0.5, 200), 16000) {
		t.Error("full hop of loud audio should be speech")
	}
}

func TestHopClassifier_ConsumesHopFromFront(t *testing.T) {
	t.Parallel()

	h := newHopClassifier(Config{ModelSampleRate: 16000, HopSize: 256, SpeechProbability: 0.5},
		&GateScorer{EnergyFloor: 0.01})

	h.Classify(constFrame(0.5, 300), 16000)
	if got := len(h.buf); got != 44 {
		t.Errorf("buffer after consuming one hop = %d samples, want 44", got)
	}
}

func TestHopClassifier_ResamplesInput(t *testing.T) {
	t.Parallel()

	h := newHopClassifier(Config{ModelSampleRate: 16000, HopSize: 256, SpeechProbability: 0.5},
		&GateScorer{EnergyFloor: 0.01})

	// 768 samples at 48 kHz resample to 256 at 16 kHz — exactly one hop.
	frame := make([]float32, 768)
	for i := range frame {
		frame[i] = float32(0.5 * math.Sin(2*math.Pi*200*float64(i)/48000))
	}
	if !h.Classify(frame, 48000) {
		t.Error("one full hop of voiced audio at 48 kHz should classify as speech")
	}
}

func TestGateScorer_RejectsBroadbandNoise(t *testing.T) {
	t.Parallel()

	g := &GateScorer{EnergyFloor: 0.01}

	// Alternating-sign full-rate "hiss": ZCR ~1.0.
	noise := make([]float32, 256)
	for i := range noise {
		if i%2 == 0 {
			noise[i] = 0.3
		} else {
			noise[i] = -0.3
		}
	}
	p, err := g.Score(noise)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if p >= 0.5 {
		t.Errorf("broadband noise scored %v, want < 0.5", p)
	}

	// A low-frequency voiced tone at the same energy must score high.
	voiced := make([]float32, 256)
	for i := range voiced {
		voiced[i] = float32(0.3 * math.Sin(2*math.Pi*float64(i)/64))
	}
	p, err = g.Score(voiced)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if p < 0.5 {
		t.Errorf("voiced tone scored %v, want >= 0.5", p)
	}
}
