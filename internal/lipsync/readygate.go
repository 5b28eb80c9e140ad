package lipsync

import (
	"log/slog"
	"sync"
	"time"
)

// ReadyGate blocks blendshape-gated playback until the external animation
// process signals it has received the frame data, or a timeout elapses. The
// timeout path exists because the handshake is advisory: audio must never
// stall indefinitely waiting on the animation side.
type ReadyGate struct {
	timeout time.Duration
	log     *slog.Logger

	mu sync.Mutex
	ch chan struct{}
}

// NewReadyGate creates a gate with the given handshake timeout.
func NewReadyGate(timeout time.Duration, log *slog.Logger) *ReadyGate {
	if log == nil {
		log = slog.Default()
	}
	return &ReadyGate{timeout: timeout, log: log}
}

// Arm prepares the gate for one handshake. Must be called before the
// corresponding Wait; a second Arm before Wait replaces the pending
// handshake.
func (g *ReadyGate) Arm() {
	g.mu.Lock()
	g.ch = make(chan struct{})
	g.mu.Unlock()
}

// Signal marks the armed handshake as completed. Signals with no armed
// handshake are ignored.
func (g *ReadyGate) Signal() {
	g.mu.Lock()
	ch := g.ch
	g.ch = nil
	g.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Wait blocks until Signal or the timeout. It returns true when the
// handshake arrived in time. An unarmed gate returns true immediately.
func (g *ReadyGate) Wait() bool {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	case <-time.After(g.timeout):
		g.log.Warn("lipsync: ready handshake timed out, starting playback anyway",
			"timeout", g.timeout)
		return false
	}
}
