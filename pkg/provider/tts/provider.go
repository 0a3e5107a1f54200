// Package tts defines the text-to-speech provider boundary.
//
// A Synthesizer performs one batch synthesis call per text chunk; the
// synthesis scheduler above it handles chunking, concurrency, and ordering.
// Implementations must be safe for concurrent use — the scheduler issues
// several overlapping calls.
package tts

import "context"

// Synthesizer converts a text chunk into a complete WAV utterance.
type Synthesizer interface {
	// Synthesize blocks until the audio is ready or ctx expires and
	// returns the full WAV file bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
