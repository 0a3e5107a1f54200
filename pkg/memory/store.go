// Package memory defines the long-term fact store boundary.
//
// Facts are short third-person statements about a speaker ("likes chocobo
// racing", "is afraid of heights") that the background extractor saves after
// each turn and the conversation session retrieves while building the system
// prompt. Implementations must be safe for concurrent use: queries run on the
// turn path while saves arrive from the extractor goroutine.
package memory

import "context"

// Fact is one remembered statement about a speaker.
type Fact struct {
	// Owner identifies whose fact this is (the speaker name).
	Owner string `json:"owner"`

	// Text is the fact itself, phrased in third person.
	Text string `json:"text"`
}

// Store is the abstraction over a long-term fact backend.
type Store interface {
	// Query returns facts relevant to the given keywords, most relevant
	// first. An empty result is not an error.
	Query(ctx context.Context, keywords []string) ([]Fact, error)

	// Save persists one fact. Duplicate facts are the backend's concern.
	Save(ctx context.Context, fact Fact) error
}
