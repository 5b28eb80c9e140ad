package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Retriever supplies knowledge passages relevant to a message. Implemented
// by rag.Retriever; nil disables retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []string
}

// ragPreamble introduces the retrieval section of the system message.
const ragPreamble = "Relevant background knowledge is appended below. " +
	"Use it when it helps answer; never mention that it was provided."

// Orchestrator owns the conversation with the model: history, prompt
// assembly and dispatch. History grows without bound within a session and
// is only dropped by ClearHistory.
//
// Safe for concurrent use, though callers normally serialize turns through
// the session's turn-taking flag.
type Orchestrator struct {
	completer Completer
	retriever Retriever
	log       *slog.Logger

	mu      sync.Mutex
	system  string
	history []Message
}

// NewOrchestrator builds an orchestrator. The system message is the prompt
// augmented with the actions catalog and, when retriever is non-nil, the
// retrieval preamble.
func NewOrchestrator(systemPrompt, catalog string, completer Completer, retriever Retriever, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	system := strings.TrimSpace(systemPrompt)
	if catalog != "" {
		system += "\n\n" + catalog
	}
	if retriever != nil {
		system += "\n\n" + ragPreamble
	}
	return &Orchestrator{
		completer: completer,
		retriever: retriever,
		log:       log,
		system:    system,
	}
}

// SendMessage runs one conversation turn and returns the assistant's full
// response, or "" when the input was empty or the model unavailable. For a
// streaming completer, onToken receives raw fragments as they arrive.
func (o *Orchestrator) SendMessage(ctx context.Context, text string, onToken TokenListener) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if o.retriever != nil {
		o.augmentSystem(ctx, text)
	}

	o.mu.Lock()
	o.history = append(o.history, Message{Role: RoleUser, Content: text})
	messages := make([]Message, 0, len(o.history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: o.system})
	messages = append(messages, o.history...)
	o.mu.Unlock()

	reply, err := o.completer.Complete(ctx, messages, onToken)
	if err != nil {
		o.log.Error("chat: completion failed", "error", err)
		return ""
	}
	if reply == "" {
		return ""
	}

	o.mu.Lock()
	o.history = append(o.history, Message{Role: RoleAssistant, Content: reply})
	o.mu.Unlock()
	return reply
}

// augmentSystem retrieves passages for text and appends any not already
// present in the system message. Dedup is by substring containment so
// overlapping sentence windows do not pile up near-duplicates.
func (o *Orchestrator) augmentSystem(ctx context.Context, text string) {
	docs := o.retriever.Retrieve(ctx, text)
	if len(docs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	added := 0
	for _, d := range docs {
		if d == "" || strings.Contains(o.system, d) {
			continue
		}
		o.system += "\n" + d
		added++
	}
	if added > 0 {
		o.log.Debug("chat: system message augmented", "passages", added)
	}
}

// ClearHistory drops the conversation so far. The system message keeps any
// retrieved knowledge accumulated during the session.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	o.history = nil
	o.mu.Unlock()
}

// History returns a copy of the conversation so far, excluding the system
// message.
func (o *Orchestrator) History() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.history))
	copy(out, o.history)
	return out
}
