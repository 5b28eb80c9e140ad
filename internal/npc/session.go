// Package npc runs one NPC conversation session: it owns the turn-taking
// state and wires captured speech through transcription, the conversation
// engine, synthesis and playback.
package npc

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arcadian-ai/parley/internal/asr"
	"github.com/arcadian-ai/parley/internal/chat"
	"github.com/arcadian-ai/parley/internal/lipsync"
	"github.com/arcadian-ai/parley/internal/playback"
	"github.com/arcadian-ai/parley/internal/segment"
	"github.com/arcadian-ai/parley/internal/transcript"
	"github.com/arcadian-ai/parley/internal/tts"
	"github.com/arcadian-ai/parley/pkg/audio"
	"github.com/arcadian-ai/parley/pkg/textnorm"
	"github.com/arcadian-ai/parley/pkg/vad"
)

// apology is synthesized when a turn degrades to an empty transcript or an
// empty model response, so failures never leave the NPC silently staring.
const apology = "Sorry, I didn't quite catch that."

// Deps are the collaborators a Session wires together. Corrector, Lipsync,
// OnAction, OnTranscript and Scratch are optional.
type Deps struct {
	Transcriber  asr.Transcriber
	Corrector    *transcript.Corrector
	Orchestrator *chat.Orchestrator
	Parser       *chat.ActionParser
	Synthesizer  tts.Synthesizer
	Sequencer    *playback.Sequencer
	Lipsync      lipsync.Fetcher
	Scratch      *audio.ScratchStore
	Log          *slog.Logger

	// Stream selects sentence-chunked synthesis fed from the token stream;
	// otherwise the whole response is synthesized at once.
	Stream bool

	// OnAction receives resolved action directives from responses.
	OnAction func(chat.ActionEvent)

	// OnTranscript receives the user's corrected transcript per turn.
	OnTranscript func(string)
}

// Session is one live conversation. The segmenter is created by the session
// so utterances flow straight into the turn handler.
type Session struct {
	deps      Deps
	segmenter *segment.Segmenter
	log       *slog.Logger

	mu        sync.Mutex
	userTurn  bool
	listening bool
}

// NewSession wires a session. segCfg and engine configure the speech
// segmenter; pass the VAD engine built from config.
func NewSession(deps Deps, segCfg segment.Config, engine vad.Engine) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Session{deps: deps, log: log, userTurn: true}
	s.segmenter = segment.New(segCfg, engine, s.handleUtterance, log)
	return s
}

// StartListening opens the microphone turn. It refuses (returns false) while
// the NPC still holds the turn.
func (s *Session) StartListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.userTurn {
		s.log.Debug("npc: ignoring listen request, not user's turn")
		return false
	}
	s.listening = true
	return true
}

// ProcessFrame feeds one captured frame into the segmenter. Frames arriving
// outside a listening window are dropped.
func (s *Session) ProcessFrame(frame audio.Frame) {
	s.mu.Lock()
	listening := s.listening
	s.mu.Unlock()
	if !listening {
		return
	}
	s.segmenter.ProcessFrame(frame)
}

// StopListening ends the turn manually, flushing whatever was captured
// regardless of its duration.
func (s *Session) StopListening() {
	s.mu.Lock()
	s.listening = false
	s.mu.Unlock()
	s.segmenter.Flush()
}

// handleUtterance claims the turn and hands the utterance to a worker
// goroutine. The segmenter calls it from the capture path, which must never
// block on transcription, completion or synthesis; the userTurn flag keeps
// a second turn from starting while the worker runs.
func (s *Session) handleUtterance(utt audio.Utterance) {
	s.mu.Lock()
	s.userTurn = false
	s.listening = false
	s.mu.Unlock()

	go s.runTurn(utt)
}

// runTurn runs one full conversation turn from a finalized utterance. The
// user's turn is released on every exit path.
func (s *Session) runTurn(utt audio.Utterance) {
	defer func() {
		s.mu.Lock()
		s.userTurn = true
		s.mu.Unlock()
	}()

	ctx := context.Background()
	text, err := s.deps.Transcriber.Transcribe(ctx, utt)
	if err != nil {
		s.log.Error("npc: transcription failed", "error", err)
		text = ""
	}
	if s.deps.Corrector != nil {
		text = s.deps.Corrector.Correct(text)
	}
	if text == "" {
		s.log.Info("npc: empty transcript, apologising")
		s.speak(ctx, apology)
		return
	}
	if s.deps.OnTranscript != nil {
		s.deps.OnTranscript(text)
	}
	s.respond(ctx, text)
}

// SendText runs a turn from typed input, bypassing capture and
// transcription. Used by the interactive text loop.
func (s *Session) SendText(ctx context.Context, text string) {
	s.mu.Lock()
	if !s.userTurn {
		s.mu.Unlock()
		s.log.Debug("npc: ignoring text input, not user's turn")
		return
	}
	s.userTurn = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.userTurn = true
		s.mu.Unlock()
	}()

	s.respond(ctx, text)
}

// respond dispatches text to the conversation engine and speaks the result.
func (s *Session) respond(ctx context.Context, text string) {
	var (
		rechunker chat.Rechunker
		onToken   chat.TokenListener
	)
	if s.deps.Stream {
		onToken = func(tok string) {
			for _, chunk := range rechunker.Push(tok) {
				s.speak(ctx, chunk)
			}
		}
	}

	response := s.deps.Orchestrator.SendMessage(ctx, text, onToken)
	if response == "" {
		s.log.Info("npc: empty response, apologising")
		s.speak(ctx, apology)
		return
	}

	if s.deps.Stream {
		for _, chunk := range rechunker.Flush() {
			s.speak(ctx, chunk)
		}
	} else {
		s.speak(ctx, textnorm.Sanitize(response))
	}

	if s.deps.Parser != nil && s.deps.OnAction != nil {
		for _, ev := range s.deps.Parser.Parse(response) {
			s.deps.OnAction(ev)
		}
	}
}

// speak synthesizes one chunk and queues it for playback, fetching
// blendshape frames when a lipsync fetcher is wired.
func (s *Session) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	wav, err := s.deps.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		s.log.Error("npc: synthesis failed", "error", err)
		return
	}
	if len(wav) == 0 {
		return
	}
	var frames [][]float32
	if s.deps.Lipsync != nil {
		frames, _ = s.deps.Lipsync.Blendshapes(ctx, wav)
	}
	s.deps.Sequencer.Enqueue(playback.Item{Audio: wav, Frames: frames})
}

// UserTurn reports whether the user currently holds the speaking turn.
func (s *Session) UserTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userTurn
}

// ClearHistory drops the conversation so far.
func (s *Session) ClearHistory() {
	s.deps.Orchestrator.ClearHistory()
}

// Close tears the session down: queued playback is dropped and scratch WAV
// files are deleted.
func (s *Session) Close() error {
	s.deps.Sequencer.Close()
	if s.deps.Scratch != nil {
		return s.deps.Scratch.Close()
	}
	return nil
}
