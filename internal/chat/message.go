// Package chat drives the conversation with the language model: it owns the
// message history, builds the prompt (system message, actions catalog,
// retrieved context), dispatches single-shot or streaming completion
// requests, re-segments streamed tokens into speakable sentence chunks and
// extracts embedded action directives.
package chat

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenListener receives raw token fragments as a streaming completion
// produces them.
type TokenListener func(token string)

// Completer issues one chat completion over the full message list. A
// degraded service yields ("", nil); onToken may be nil and is only invoked
// by streaming implementations.
type Completer interface {
	Complete(ctx context.Context, messages []Message, onToken TokenListener) (string, error)
}
