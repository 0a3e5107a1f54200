// Package capture provides microphone input sources for the voice pipeline.
//
// The primary implementation is [Mic], a PortAudio-backed mono capture stream
// polled one frame at a time by the voice-activity detector. The [Source]
// interface exists so tests and headless deployments can substitute scripted
// frame sequences.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/miravoice/mira/pkg/audio"
)

// ErrClosed is returned by Read after Close has been called.
var ErrClosed = errors.New("capture: source closed")

// Source is a pull-based mono PCM input. Read blocks until a full frame has
// been captured and returns a copy the caller owns.
//
// A Source is not safe for concurrent Read calls; the capture loop is the
// single reader.
type Source interface {
	// Read captures the next frame.
	Read() (audio.Frame, error)

	// Close stops the stream and releases the device.
	Close() error
}

// Mic captures mono PCM from the default input device via PortAudio.
type Mic struct {
	sampleRate int
	buf        []float32
	stream     *portaudio.Stream

	mu     sync.Mutex
	closed bool
}

// Compile-time check that *Mic satisfies [Source].
var _ Source = (*Mic)(nil)

// OpenMic initialises PortAudio and opens the default input device at the
// given sample rate with frameSize samples per Read. The caller must Close
// the returned Mic to release the device and terminate PortAudio.
func OpenMic(sampleRate, frameSize int) (*Mic, error) {
	if sampleRate <= 0 || frameSize <= 0 {
		return nil, fmt.Errorf("capture: invalid stream parameters rate=%d frame=%d", sampleRate, frameSize)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialise portaudio: %w", err)
	}

	m := &Mic{
		sampleRate: sampleRate,
		buf:        make([]float32, frameSize),
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, m.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("capture: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	m.stream = stream
	return m, nil
}

// Read blocks until the next frame of mic audio is available.
func (m *Mic) Read() (audio.Frame, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return audio.Frame{}, ErrClosed
	}
	m.mu.Unlock()

	if err := m.stream.Read(); err != nil {
		return audio.Frame{}, fmt.Errorf("capture: read stream: %w", err)
	}

	samples := make([]float32, len(m.buf))
	copy(samples, m.buf)
	return audio.Frame{Samples: samples, SampleRate: m.sampleRate}, nil
}

// Close stops and closes the stream and terminates PortAudio.
// Calling Close more than once is safe and returns nil.
func (m *Mic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("capture: stop stream: %w", err))
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("capture: close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("capture: terminate portaudio: %w", err))
	}
	return errors.Join(errs...)
}
