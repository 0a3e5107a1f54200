// Package playback provides the speaker output sink consumed by the synthesis
// scheduler. Audio arrives as complete WAV utterances and is played strictly
// one at a time; ordering is the scheduler's responsibility.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/miravoice/mira/pkg/audio"
)

// resampleQuality is the interpolation quality passed to beep.Resample when
// the synthesised sample rate differs from the speaker rate. 4 is beep's
// recommended middle ground between CPU cost and artefacts.
const resampleQuality = 4

// Sink plays one WAV utterance at a time.
type Sink interface {
	// Play decodes data and blocks until playback finishes or ctx is
	// cancelled. Cancellation stops the speaker immediately.
	Play(ctx context.Context, data []byte) error

	// Close releases the audio device.
	Close() error
}

// Speaker is a beep-backed [Sink] on the default output device.
type Speaker struct {
	rate beep.SampleRate

	mu     sync.Mutex
	closed bool
}

// Compile-time check that *Speaker satisfies [Sink].
var _ Sink = (*Speaker)(nil)

// OpenSpeaker initialises the default output device at the given sample rate.
// Synthesised audio at other rates is resampled on the fly.
func OpenSpeaker(sampleRate int) (*Speaker, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("playback: invalid sample rate %d", sampleRate)
	}
	rate := beep.SampleRate(sampleRate)
	if err := speaker.Init(rate, rate.N(100*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("playback: initialise speaker: %w", err)
	}
	return &Speaker{rate: rate}, nil
}

// Play decodes the WAV payload and blocks until the utterance has finished
// playing. A cancelled context clears the speaker queue and returns ctx.Err().
func (s *Speaker) Play(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("playback: speaker closed")
	}
	s.mu.Unlock()

	streamer, format, err := wav.Decode(audio.NewWAVReader(data))
	if err != nil {
		return fmt.Errorf("playback: decode wav: %w", err)
	}
	defer streamer.Close()

	var stream beep.Streamer = streamer
	if format.SampleRate != s.rate {
		stream = beep.Resample(resampleQuality, format.SampleRate, s.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Close marks the sink closed. beep owns the device globally, so Close only
// prevents further Play calls and clears anything still queued.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	speaker.Clear()
	return nil
}
