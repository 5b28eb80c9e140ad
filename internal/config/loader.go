package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// Config. It is a convenience wrapper around LoadFromReader and Validate.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Useful in tests where configs are string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ASR.Mode == "" {
		cfg.ASR.Mode = "http"
	}
	if cfg.ASR.Language == "" {
		cfg.ASR.Language = "en"
	}
	if cfg.VAD.Mode == "" {
		cfg.VAD.Mode = "energy"
	}
	if cfg.Segmenter.SecondsOfSilence <= 0 {
		cfg.Segmenter.SecondsOfSilence = 1.5
	}
	if cfg.Segmenter.MinSpeechDuration < 0 {
		cfg.Segmenter.MinSpeechDuration = 0.5
	}
	if cfg.RAG.SentencesPerChunk <= 0 {
		cfg.RAG.SentencesPerChunk = 3
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.TopN <= 0 {
		cfg.RAG.TopN = 3
	}
	if cfg.RAG.EmbeddingDimensions <= 0 {
		cfg.RAG.EmbeddingDimensions = 768
	}
	if cfg.Lipsync.Mode == "" {
		cfg.Lipsync.Mode = "off"
	}
	if cfg.Lipsync.ReadyTimeoutSeconds <= 0 {
		cfg.Lipsync.ReadyTimeoutSeconds = 3
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; soft problems are
// logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf(
			"logLevel %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	switch cfg.ASR.Mode {
	case "http":
		if cfg.Services.ASRPort <= 0 {
			errs = append(errs, errors.New("services.asrPort is required for asr.mode http"))
		}
	case "native":
		if cfg.ASR.ModelPath == "" {
			errs = append(errs, errors.New("asr.modelPath is required for asr.mode native"))
		}
	default:
		errs = append(errs, fmt.Errorf("asr.mode %q is invalid; valid values: http, native", cfg.ASR.Mode))
	}

	if !cfg.VAD.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("vad.mode %q is invalid; valid values: disabled, energy, gate, neural", cfg.VAD.Mode))
	}

	if cfg.Services.ChatPort <= 0 {
		errs = append(errs, errors.New("services.chatPort is required"))
	}

	if cfg.RAG.Enabled {
		if cfg.Services.EmbeddingPort <= 0 {
			errs = append(errs, errors.New("services.embeddingPort is required when rag.enabled"))
		}
		if cfg.RAG.KnowledgePath == "" && cfg.RAG.PostgresDSN == "" {
			errs = append(errs, errors.New("rag.knowledgePath or rag.postgresDSN is required when rag.enabled"))
		}
		if cfg.RAG.Rerank && cfg.Services.RerankerPort <= 0 {
			errs = append(errs, errors.New("services.rerankerPort is required when rag.rerank"))
		}
		if cfg.RAG.SentenceOverlap >= cfg.RAG.SentencesPerChunk {
			slog.Warn("rag.sentenceOverlap >= rag.sentencesPerChunk; chunk stride collapses to one sentence",
				"overlap", cfg.RAG.SentenceOverlap, "perChunk", cfg.RAG.SentencesPerChunk)
		}
	}

	switch cfg.Lipsync.Mode {
	case "off", "facial":
	case "blendshapes":
		if cfg.Services.LipsyncPort <= 0 {
			errs = append(errs, errors.New("services.lipsyncPort is required for lipsync.mode blendshapes"))
		}
	default:
		errs = append(errs, fmt.Errorf("lipsync.mode %q is invalid; valid values: off, blendshapes, facial", cfg.Lipsync.Mode))
	}

	if cfg.TTS.Voice == "" {
		slog.Warn("tts.voice is unset; synthesis requests will short-circuit to silence")
	}
	for i, a := range cfg.Actions.Actions {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("actions.actions[%d].name must not be empty", i))
		}
	}

	return errors.Join(errs...)
}
