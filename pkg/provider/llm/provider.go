// Package llm defines the language-model provider boundary.
//
// Two operations are needed by the pipeline: a conversational chat
// completion over ordered message history, and a deterministic single-prompt
// completion used by the background fact extractor. Implementations must be
// safe for concurrent use and must respect context cancellation — the fact
// extractor runs while the next conversational turn may already be starting.
package llm

import "context"

// Roles for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the abstraction over a chat-capable model backend.
type Provider interface {
	// Chat sends the full ordered history and returns the assistant reply
	// text. An empty reply is returned as "", nil — semantic emptiness is
	// the caller's concern.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate runs a deterministic (zero-temperature) completion over a
	// single prompt. Used for extraction tasks that need reproducible
	// output.
	Generate(ctx context.Context, prompt string) (string, error)
}
