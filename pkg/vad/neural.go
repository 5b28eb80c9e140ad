package vad

import (
	"errors"
	"sync"
)

// ErrNoNeuralBackend is returned when ModeNeural is requested but no platform
// build has registered a neural scorer factory.
var ErrNoNeuralBackend = errors.New("vad: no neural scorer registered for this build")

var (
	neuralMu      sync.RWMutex
	neuralFactory func(Config) (Scorer, error)
)

// RegisterNeuralScorer installs the factory used by ModeNeural. Platform
// builds that link a neural frame-classifier model call this from an init
// function; without a registration New collapses ModeNeural to the energy
// gate.
func RegisterNeuralScorer(factory func(Config) (Scorer, error)) {
	neuralMu.Lock()
	defer neuralMu.Unlock()
	neuralFactory = factory
}

func newNeuralScorer(cfg Config) (Scorer, error) {
	neuralMu.RLock()
	factory := neuralFactory
	neuralMu.RUnlock()

	if factory == nil {
		return nil, ErrNoNeuralBackend
	}
	return factory(cfg)
}
