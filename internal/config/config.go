// Package config defines the YAML configuration schema for parley and its
// loader. Unknown YAML fields are rejected so typos surface at startup
// instead of silently falling back to defaults.
package config

import (
	"log/slog"
	"time"

	"github.com/arcadian-ai/parley/internal/chat"
	"github.com/arcadian-ai/parley/pkg/vad"
)

// LogLevel is the slog level name used in the config file.
type LogLevel string

// IsValid reports whether the level is one of debug, info, warn, error.
func (l LogLevel) IsValid() bool {
	switch l {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Level converts the config value to a slog.Level. Unset defaults to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration document.
type Config struct {
	LogLevel LogLevel `yaml:"logLevel"`

	Services  Services  `yaml:"services"`
	ASR       ASR       `yaml:"asr"`
	VAD       VAD       `yaml:"vad"`
	Segmenter Segmenter `yaml:"segmenter"`
	RAG       RAG       `yaml:"rag"`
	Chat      Chat      `yaml:"chat"`
	TTS       TTS       `yaml:"tts"`
	Lipsync   Lipsync   `yaml:"lipsync"`
	Actions   Actions   `yaml:"actions"`

	// ScratchDir holds transient WAV files, deleted on session teardown.
	// Defaults to the OS temp directory.
	ScratchDir string `yaml:"scratchDir"`
}

// Services lists the localhost ports of the external model services.
type Services struct {
	ASRPort       int `yaml:"asrPort"`
	ChatPort      int `yaml:"chatPort"`
	EmbeddingPort int `yaml:"embeddingPort"`
	RerankerPort  int `yaml:"rerankerPort"`
	TTSPort       int `yaml:"ttsPort"`
	LipsyncPort   int `yaml:"lipsyncPort"`
}

// ASR selects the transcription backend.
type ASR struct {
	// Mode is "http" (whisper.cpp server) or "native" (in-process CGO
	// bindings). Defaults to http.
	Mode string `yaml:"mode"`

	// ModelPath is the whisper model file, required for native mode.
	ModelPath string `yaml:"modelPath"`

	// Language is the BCP-47 transcription language. Defaults to en.
	Language string `yaml:"language"`
}

// VAD configures voice-activity detection.
type VAD struct {
	// Mode is one of disabled, energy, gate, neural.
	Mode vad.Mode `yaml:"mode"`

	EnergyThreshold   float64 `yaml:"energyThreshold"`
	SpeechProbability float64 `yaml:"speechProbability"`
}

// Segmenter configures utterance finalisation.
type Segmenter struct {
	SecondsOfSilence  float64 `yaml:"secondsOfSilence"`
	MinSpeechDuration float64 `yaml:"minSpeechDuration"`
}

// RAG configures retrieval-augmented prompting.
type RAG struct {
	Enabled bool `yaml:"enabled"`

	// KnowledgePath is the plain-text corpus ingested at session start.
	KnowledgePath string `yaml:"knowledgePath"`

	SentencesPerChunk   int     `yaml:"sentencesPerChunk"`
	SentenceOverlap     int     `yaml:"sentenceOverlap"`
	TopK                int     `yaml:"topK"`
	TopN                int     `yaml:"topN"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	Rerank              bool    `yaml:"rerank"`

	// PostgresDSN enables the persistent pgvector store instead of the
	// in-process one. The embedding dimension must match the model.
	PostgresDSN         string `yaml:"postgresDSN"`
	EmbeddingDimensions int    `yaml:"embeddingDimensions"`
}

// Chat configures the conversation engine.
type Chat struct {
	SystemPrompt string `yaml:"systemPrompt"`
	Stream       bool   `yaml:"stream"`
}

// TTS configures speech synthesis.
type TTS struct {
	Voice string `yaml:"voice"`
}

// Lipsync configures facial animation.
type Lipsync struct {
	// Mode is "off", "blendshapes" or "facial".
	Mode string `yaml:"mode"`

	// ReadyTimeoutSeconds bounds the animation process handshake.
	ReadyTimeoutSeconds float64 `yaml:"readyTimeoutSeconds"`
}

// ReadyTimeout converts the handshake bound to a time.Duration.
func (l Lipsync) ReadyTimeout() time.Duration {
	return time.Duration(l.ReadyTimeoutSeconds * float64(time.Second))
}

// Actions holds the interaction vocabulary.
type Actions struct {
	Actions []chat.Action `yaml:"actions"`
	Objects []string      `yaml:"objects"`
}
