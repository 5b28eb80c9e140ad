package vad

import (
	"math"
	"sync"

	"github.com/arcadian-ai/parley/pkg/audio"
)

// Scorer produces a speech probability for one fixed-size hop of samples at
// the model sample rate.
type Scorer interface {
	Score(hop []float32) (float64, error)
}

// hopClassifier adapts a hop-based Scorer to the Engine contract. Incoming
// frames are resampled to the model rate and appended to an internal buffer;
// once a full hop is available it is scored and removed from the front.
// Calls made while the buffer is underfilled return false ("no decision
// yet"), matching the behaviour of frame-classifier VAD libraries.
//
// The buffer has its own mutex so unrelated audio streams do not serialise
// on the caller's accumulation lock.
type hopClassifier struct {
	scorer    Scorer
	rate      int
	hop       int
	threshold float64

	mu  sync.Mutex
	buf []float32
}

func newHopClassifier(cfg Config, scorer Scorer) *hopClassifier {
	return &hopClassifier{
		scorer:    scorer,
		rate:      cfg.ModelSampleRate,
		hop:       cfg.HopSize,
		threshold: cfg.SpeechProbability,
	}
}

// Classify implements Engine.
func (h *hopClassifier) Classify(samples []float32, sampleRate int) bool {
	resampled := audio.ResampleSinc(samples, sampleRate, h.rate)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf = append(h.buf, resampled...)
	if len(h.buf) < h.hop {
		return false
	}

	hop := h.buf[:h.hop]
	p, err := h.scorer.Score(hop)
	// Copy down so consumed samples do not pin the backing array.
	h.buf = append(h.buf[:0], h.buf[h.hop:]...)
	if err != nil {
		return false
	}
	return p >= h.threshold
}

// GateScorer is the energy/zero-crossing hop scorer. It models the behaviour
// of WebRTC-style detectors: a frame needs energy above the floor, and a
// zero-crossing rate in the band typical of voiced speech, to score high.
type GateScorer struct {
	// EnergyFloor is the RMS level below which a hop is certainly silence.
	EnergyFloor float64
}

// Score implements Scorer.
func (g *GateScorer) Score(hop []float32) (float64, error) {
	floor := g.EnergyFloor
	if floor <= 0 {
		floor = 0.01
	}

	r := audio.RMS(hop)
	if r < floor {
		return 0, nil
	}

	z := zeroCrossingRate(hop)
	// Voiced speech sits well below the ZCR of broadband noise; pure hiss at
	// speech-level energy lands around 0.5.
	if z > 0.35 {
		return 0.25, nil
	}
	return math.Min(1, 0.5+r/(4*floor)*0.5), nil
}

// zeroCrossingRate returns the fraction of adjacent sample pairs with
// opposite sign.
func zeroCrossingRate(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}
