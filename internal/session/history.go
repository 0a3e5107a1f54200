package session

import (
	"sync"

	"github.com/miravoice/mira/pkg/provider/llm"
)

// History is the ordered conversation transcript. Entry 0 is always the
// system message and is rebuilt in place, never appended. The total length is
// capped at 1 + maxMessages by dropping the oldest non-system entries.
//
// Appends on the turn path are already serialized by the session's in-flight
// guard; the mutex covers the out-of-band writers (command confirmations
// arriving from the router path) and snapshot readers.
type History struct {
	maxMessages int

	mu      sync.Mutex
	entries []llm.Message
}

// NewHistory creates an empty History capped at 1 system entry plus
// maxMessages conversational entries.
func NewHistory(maxMessages int) *History {
	if maxMessages <= 0 {
		maxMessages = defaultMaxHistoryMessages
	}
	return &History{maxMessages: maxMessages}
}

// SetSystem overwrites the system entry in place, creating it on first use.
func (h *History) SetSystem(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := llm.Message{Role: llm.RoleSystem, Content: content}
	if len(h.entries) == 0 {
		h.entries = append(h.entries, msg)
		return
	}
	h.entries[0] = msg
}

// Append adds one entry and trims. Trimming happens after every append, not
// only at turn start, so the cap holds between turns too.
func (h *History) Append(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		// Keep slot 0 reserved for the system entry.
		h.entries = append(h.entries, llm.Message{Role: llm.RoleSystem})
	}
	h.entries = append(h.entries, llm.Message{Role: role, Content: content})
	h.trimLocked()
}

// trimLocked drops the oldest non-system entries until the cap holds.
// Must be called with h.mu held.
func (h *History) trimLocked() {
	cap := 1 + h.maxMessages
	for len(h.entries) > cap {
		// Index 0 is the system entry; index 1 is the oldest removable one.
		h.entries = append(h.entries[:1], h.entries[2:]...)
	}
}

// Snapshot returns a copy of the current entries, safe to hand to a provider
// call or a background reader.
func (h *History) Snapshot() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]llm.Message, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the current entry count including the system entry.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
