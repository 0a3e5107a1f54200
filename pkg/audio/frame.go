// Package audio provides the PCM primitives shared by the capture, detection,
// and playback stages of the Mira voice pipeline: the AudioFrame transport
// type, RMS loudness measurement, and WAV container encoding/decoding.
package audio

import (
	"math"
	"time"
)

// Frame is a contiguous run of mono PCM samples captured since the previous
// poll. Frames are transient: produced by the capture stream, consumed
// immediately by the voice-activity detector, never retained.
type Frame struct {
	// Samples holds linear-amplitude mono samples in the range [-1, 1].
	Samples []float32

	// SampleRate in Hz (16000 for the transcription sidecar).
	SampleRate int
}

// Duration returns the audio duration covered by the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// RMS returns the root-mean-square of the linear-amplitude samples.
// An empty slice yields 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
