// Package stt defines the speech-to-text provider boundary.
//
// A Transcriber wraps whatever transcription backend is running (the local
// faster-whisper sidecar in the default deployment) behind a single blocking
// call. Implementations must be safe for concurrent use and must respect
// context cancellation.
package stt

import "context"

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed utterance, whitespace-trimmed.
	Text string

	// Language is the detected language code (e.g. "en", "fr").
	Language string
}

// Transcriber converts a complete WAV-encoded utterance into text.
type Transcriber interface {
	// Transcribe sends the WAV payload and blocks until the transcript
	// arrives or ctx expires.
	Transcribe(ctx context.Context, wavData []byte) (Transcript, error)
}
