// Command parley runs one NPC voice conversation session against a set of
// local model services. Without a WAV file it drops into an interactive
// text loop; with -wav it feeds the file through the full capture pipeline
// (segmentation, transcription, conversation, synthesis, playback timing).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcadian-ai/parley/internal/asr"
	"github.com/arcadian-ai/parley/internal/chat"
	"github.com/arcadian-ai/parley/internal/config"
	"github.com/arcadian-ai/parley/internal/lipsync"
	"github.com/arcadian-ai/parley/internal/npc"
	"github.com/arcadian-ai/parley/internal/observe"
	"github.com/arcadian-ai/parley/internal/playback"
	"github.com/arcadian-ai/parley/internal/rag"
	"github.com/arcadian-ai/parley/internal/segment"
	"github.com/arcadian-ai/parley/internal/transcript"
	"github.com/arcadian-ai/parley/internal/tts"
	"github.com/arcadian-ai/parley/pkg/audio"
	"github.com/arcadian-ai/parley/pkg/vad"
)

// captureFrameSize mimics a typical capture device callback granularity.
const captureFrameSize = 1024

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	wavPath := flag.String("wav", "", "feed a WAV file through the voice pipeline instead of the text loop")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "parley"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				slog.Error("metrics server error", "err", err)
			}
		}()
		slog.Info("metrics exposed", "addr", *metricsAddr)
	}

	session, cleanup, err := buildSession(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to build session", "err", err)
		return 1
	}
	defer cleanup()
	defer session.Close()

	if *wavPath != "" {
		if err := runWAV(session, *wavPath); err != nil {
			slog.Error("wav run failed", "err", err)
			return 1
		}
		return 0
	}
	return runTextLoop(ctx, session)
}

// buildSession wires the pipeline from configuration.
func buildSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*npc.Session, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	scratch, err := audio.NewScratchStore(cfg.ScratchDir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("scratch store: %w", err)
	}

	var transcriber asr.Transcriber
	switch cfg.ASR.Mode {
	case "native":
		native, err := asr.NewNative(cfg.ASR.ModelPath,
			asr.WithNativeLanguage(cfg.ASR.Language),
			asr.WithNativeLogger(logger))
		if err != nil {
			return nil, cleanup, fmt.Errorf("native transcriber: %w", err)
		}
		cleanups = append(cleanups, func() { native.Close() })
		transcriber = native
	default:
		transcriber = asr.NewHTTPClient(cfg.Services.ASRPort, scratch,
			asr.WithLogger(logger))
	}

	var retriever chat.Retriever
	if cfg.RAG.Enabled {
		r, stop, err := buildRetriever(ctx, cfg, logger)
		if err != nil {
			return nil, cleanup, err
		}
		if stop != nil {
			cleanups = append(cleanups, stop)
		}
		retriever = r
	}

	var completer chat.Completer
	if cfg.Chat.Stream {
		completer = chat.NewStreamClient(cfg.Services.ChatPort, logger)
	} else {
		completer = chat.NewSingleShotClient(cfg.Services.ChatPort, logger)
	}

	parser := chat.NewActionParser(cfg.Actions.Actions, cfg.Actions.Objects, logger)
	orchestrator := chat.NewOrchestrator(cfg.Chat.SystemPrompt, parser.Catalog(),
		completer, retriever, logger)

	synth := tts.NewClient(cfg.Services.TTSPort, cfg.TTS.Voice, logger)

	var (
		fetcher   lipsync.Fetcher
		sequencer *playback.Sequencer
		sink      = logSink{log: logger}
	)
	switch cfg.Lipsync.Mode {
	case "blendshapes":
		client := lipsync.NewClient(cfg.Services.LipsyncPort, logger)
		fetcher = client
		gate := lipsync.NewReadyGate(cfg.Lipsync.ReadyTimeout(), logger)
		sequencer = playback.NewBlendshapeSequencer(sink,
			func(frames [][]float32) {
				logger.Debug("blendshape frames submitted", "frames", len(frames))
				// Standalone the binary has no animation process, so the
				// handshake is acknowledged here. A host embedding this
				// pipeline forwards the frames and calls gate.Signal()
				// once the animation side confirms receipt.
				gate.Signal()
			},
			gate, playback.WithLogger(logger))
	case "facial":
		sequencer = playback.NewFacialSequencer(sink, 200*time.Millisecond,
			playback.WithLogger(logger))
	default:
		sequencer = playback.NewSequencer(sink, playback.WithLogger(logger))
	}

	var corrector *transcript.Corrector
	if len(cfg.Actions.Objects) > 0 {
		corrector = transcript.NewCorrector(cfg.Actions.Objects)
	}

	session := npc.NewSession(npc.Deps{
		Transcriber:  transcriber,
		Corrector:    corrector,
		Orchestrator: orchestrator,
		Parser:       parser,
		Synthesizer:  synth,
		Sequencer:    sequencer,
		Lipsync:      fetcher,
		Scratch:      scratch,
		Log:          logger,
		Stream:       cfg.Chat.Stream,
		OnAction: func(ev chat.ActionEvent) {
			logger.Info("action triggered", "action", ev.Action, "object", ev.Object)
		},
		OnTranscript: func(text string) {
			fmt.Printf("you: %s\n", text)
		},
	}, segment.Config{
		SecondsOfSilence:  cfg.Segmenter.SecondsOfSilence,
		MinSpeechDuration: cfg.Segmenter.MinSpeechDuration,
	}, vad.New(vad.Config{
		Mode:              cfg.VAD.Mode,
		EnergyThreshold:   cfg.VAD.EnergyThreshold,
		SpeechProbability: cfg.VAD.SpeechProbability,
	}))
	return session, cleanup, nil
}

// buildRetriever sets up the knowledge store and runs ingestion in the
// background so session start is not blocked on embedding the corpus.
func buildRetriever(ctx context.Context, cfg *config.Config, logger *slog.Logger) (chat.Retriever, func(), error) {
	embedder := rag.NewHTTPEmbedder(cfg.Services.EmbeddingPort, logger)

	var (
		store rag.Store
		stop  func()
	)
	if cfg.RAG.PostgresDSN != "" {
		pg, err := rag.NewPGStore(ctx, cfg.RAG.PostgresDSN, cfg.RAG.EmbeddingDimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("pg store: %w", err)
		}
		store = pg
		stop = pg.Close
	} else {
		store = rag.NewMemoryStore()
	}

	if cfg.RAG.KnowledgePath != "" {
		raw, err := os.ReadFile(cfg.RAG.KnowledgePath)
		if err != nil {
			return nil, stop, fmt.Errorf("knowledge file: %w", err)
		}
		ingestor := rag.NewIngestor(embedder, store,
			cfg.RAG.SentencesPerChunk, cfg.RAG.SentenceOverlap, logger)
		go func() {
			if err := ingestor.Ingest(ctx, string(raw)); err != nil {
				logger.Error("knowledge ingestion failed", "err", err)
			}
		}()
	}

	var reranker rag.Reranker
	if cfg.RAG.Rerank {
		reranker = rag.NewHTTPReranker(cfg.Services.RerankerPort, logger)
	}
	return rag.NewRetriever(embedder, store, reranker,
		cfg.RAG.TopK, cfg.RAG.TopN, cfg.RAG.SimilarityThreshold, logger), stop, nil
}

// logSink stands in for the host's audio device: it logs clip starts so the
// playback timing is observable when running the binary standalone.
type logSink struct {
	log *slog.Logger
}

func (s logSink) Play(item playback.Item) {
	s.log.Info("clip playing", "duration", item.Duration, "bytes", len(item.Audio))
}

// runTextLoop reads lines from stdin and runs them as conversation turns.
func runTextLoop(ctx context.Context, session *npc.Session) int {
	fmt.Println("type a message and press enter (ctrl+d to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		select {
		case <-ctx.Done():
			return 0
		default:
		}
		session.SendText(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Error("stdin error", "err", err)
		return 1
	}
	return 0
}

// runWAV feeds a recorded file through the capture pipeline in real frame
// sizes, stops listening to flush the tail, then waits for the resulting
// turn (running on the session's worker goroutine) to finish.
func runWAV(session *npc.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, rate, err := audio.DecodeSamples(f)
	if err != nil {
		return err
	}
	if !session.StartListening() {
		return errors.New("session refused to listen")
	}
	for start := 0; start < len(samples); start += captureFrameSize {
		end := start + captureFrameSize
		if end > len(samples) {
			end = len(samples)
		}
		session.ProcessFrame(audio.Frame{Samples: samples[start:end], SampleRate: rate})
	}
	session.StopListening()

	for !session.UserTurn() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
