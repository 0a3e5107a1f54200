package xtts

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeWAV builds a minimal valid RIFF/WAVE container with n bytes of PCM.
func fakeWAV(n int) []byte {
	data := make([]byte, n)
	buf := make([]byte, 0, 44+n)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+n))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)     // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1)     // mono
	buf = binary.LittleEndian.AppendUint32(buf, 22050) // sample rate
	buf = binary.LittleEndian.AppendUint32(buf, 44100) // byte rate
	buf = binary.LittleEndian.AppendUint16(buf, 2)     // block align
	buf = binary.LittleEndian.AppendUint16(buf, 16)    // bit depth
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(n))
	buf = append(buf, data...)
	return buf
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	wav := fakeWAV(2048)
	var got ttsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts_to_audio/" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithLanguage("fr"), WithSpeakerWAV("speaker.wav"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := c.Synthesize(context.Background(), "Bonjour le monde.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) != len(wav) {
		t.Errorf("audio length = %d, want %d", len(out), len(wav))
	}
	if got.Text != "Bonjour le monde." {
		t.Errorf("request text = %q", got.Text)
	}
	if got.Language != "fr" {
		t.Errorf("request language = %q, want fr", got.Language)
	}
	if got.SpeakerWav != "speaker.wav" {
		t.Errorf("request speaker_wav = %q", got.SpeakerWav)
	}
}

func TestSynthesizeRejectsNonWAVBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"detail": "internal error"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("want error for non-WAV response body")
	}
}

func TestSynthesizeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("want error on 500")
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	c, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("want error for blank text")
	}
}
