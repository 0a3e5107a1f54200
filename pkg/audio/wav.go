package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV serialises mono float32 PCM into a 16-bit little-endian WAV file.
// This is the upload format expected by the transcription sidecar.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}

	buf := newSeekBuffer()
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		v := int(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		ints[i] = v
	}

	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           ints,
	}
	if err := enc.Write(pcm); err != nil {
		return nil, fmt.Errorf("audio: write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalise wav: %w", err)
	}
	return buf.Bytes(), nil
}

// WAVInfo holds the format metadata extracted from a RIFF/WAVE header.
type WAVInfo struct {
	DataOffset int // byte offset of the first PCM sample
	DataLen    int // length in bytes of the data chunk
	SampleRate int // samples per second
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // bits per sample
}

// Duration returns the playback duration of the PCM payload described by info.
func (i WAVInfo) Duration() time.Duration {
	if i.SampleRate <= 0 || i.Channels <= 0 || i.BitDepth <= 0 {
		return 0
	}
	bytesPerSecond := i.SampleRate * i.Channels * i.BitDepth / 8
	return time.Duration(float64(i.DataLen) / float64(bytesPerSecond) * float64(time.Second))
}

// ParseWAV scans the RIFF/WAVE container in data and returns the data offset
// and audio format from the "fmt " sub-chunk. Walking the chunk list is more
// robust than assuming a fixed 44-byte header because the fmt chunk size may
// vary between encoders.
func ParseWAV(data []byte) (WAVInfo, error) {
	if len(data) < 12 {
		return WAVInfo{}, errors.New("audio: wav data too short to be a valid RIFF file")
	}
	if string(data[0:4]) != "RIFF" {
		return WAVInfo{}, errors.New("audio: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("audio: missing WAVE identifier")
	}

	var info WAVInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(data) {
				fmtData := data[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				info.BitDepth = int(binary.LittleEndian.Uint16(fmtData[14:16]))
				foundFmt = true
			}
		case "data":
			info.DataOffset = offset + 8
			info.DataLen = chunkSize
			if info.DataOffset+info.DataLen > len(data) {
				info.DataLen = len(data) - info.DataOffset
			}
			if !foundFmt {
				return WAVInfo{}, errors.New("audio: data chunk precedes fmt chunk")
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return WAVInfo{}, errors.New("audio: wav data missing data chunk")
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder needs seeking to
// backfill RIFF chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func newSeekBuffer() *seekBuffer {
	return &seekBuffer{data: make([]byte, 0, 4096)}
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		if need > cap(b.data) {
			grown := make([]byte, len(b.data), need*2)
			copy(grown, b.data)
			b.data = grown
		}
		b.data = b.data[:need]
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.data) + int(offset)
	default:
		return 0, fmt.Errorf("audio: invalid seek whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("audio: seek before start of buffer")
	}
	b.pos = next
	return int64(next), nil
}

func (b *seekBuffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

var _ io.WriteSeeker = (*seekBuffer)(nil)

// bytesReadCloser adapts a byte slice to io.ReadCloser for decoders that
// insist on owning stream lifetime.
type bytesReadCloser struct {
	*bytes.Reader
}

func (bytesReadCloser) Close() error { return nil }

// NewWAVReader wraps WAV bytes in an io.ReadCloser suitable for streaming
// decoders such as beep's wav.Decode.
func NewWAVReader(data []byte) io.ReadCloser {
	return bytesReadCloser{bytes.NewReader(data)}
}
