package config

import (
	"strings"
	"testing"
)

const validYAML = `
logLevel: debug
services:
  asrPort: 8080
  chatPort: 8081
  embeddingPort: 8082
  rerankerPort: 8083
  ttsPort: 8084
asr:
  mode: http
vad:
  mode: energy
  energyThreshold: 0.02
segmenter:
  secondsOfSilence: 1.2
  minSpeechDuration: 0.4
rag:
  enabled: true
  knowledgePath: lore.txt
  sentencesPerChunk: 3
  sentenceOverlap: 1
  topK: 5
  topN: 3
  similarityThreshold: 0.5
  rerank: true
chat:
  systemPrompt: You are a town guard.
  stream: true
tts:
  voice: guard
actions:
  actions:
    - name: sit
    - name: move
      requiresObject: true
  objects: [door, lever]
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Services.ChatPort != 8081 {
		t.Errorf("chatPort = %d", cfg.Services.ChatPort)
	}
	if !cfg.Chat.Stream {
		t.Error("stream not decoded")
	}
	if len(cfg.Actions.Actions) != 2 || !cfg.Actions.Actions[1].RequiresObject {
		t.Errorf("actions = %+v", cfg.Actions.Actions)
	}
	if cfg.Segmenter.SecondsOfSilence != 1.2 {
		t.Errorf("secondsOfSilence = %v", cfg.Segmenter.SecondsOfSilence)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
services:
  asrPort: 1
  chatPort: 2
tts:
  voice: v
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.ASR.Mode != "http" || cfg.ASR.Language != "en" {
		t.Errorf("asr defaults = %+v", cfg.ASR)
	}
	if cfg.VAD.Mode != "energy" {
		t.Errorf("vad.mode default = %q", cfg.VAD.Mode)
	}
	if cfg.Segmenter.SecondsOfSilence != 1.5 {
		t.Errorf("secondsOfSilence default = %v", cfg.Segmenter.SecondsOfSilence)
	}
	if cfg.Lipsync.Mode != "off" || cfg.Lipsync.ReadyTimeoutSeconds != 3 {
		t.Errorf("lipsync defaults = %+v", cfg.Lipsync)
	}
	if cfg.ScratchDir == "" {
		t.Error("scratchDir default missing")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
services:
  chatPort: 1
segmentr:
  secondsOfSilence: 1
`))
	if err == nil {
		t.Fatal("misspelled section must be rejected")
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
logLevel: loud
services:
  chatPort: 0
asr:
  mode: telepathy
vad:
  mode: psychic
`))
	if err == nil {
		t.Fatal("invalid config must fail validation")
	}
	for _, want := range []string{"logLevel", "asr.mode", "vad.mode", "chatPort"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestValidate_NativeNeedsModelPath(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
services:
  chatPort: 1
asr:
  mode: native
`))
	if err == nil || !strings.Contains(err.Error(), "modelPath") {
		t.Errorf("native mode without modelPath must fail, got %v", err)
	}
}

func TestValidate_RAGNeedsSources(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
services:
  chatPort: 1
  asrPort: 1
  embeddingPort: 2
rag:
  enabled: true
`))
	if err == nil || !strings.Contains(err.Error(), "knowledgePath") {
		t.Errorf("rag without a source must fail, got %v", err)
	}
}
