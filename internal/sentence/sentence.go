// Package sentence splits a completed model reply into playback-ordered
// sentence units for incremental speech synthesis.
//
// Emotion is inferred once for the whole reply and stamped onto every unit.
// Per-fragment inference would let a single reply flicker between moods
// mid-speech, so the two behaviors are never mixed.
package sentence

import (
	"strings"
	"unicode/utf8"
)

// minContent is the minimum number of runes a unit must keep after
// stripping trailing punctuation. Shorter candidates are punctuation noise
// ("!", "...") and are suppressed.
const minContent = 2

// Unit is one synthesizable sentence with its emotion label.
type Unit struct {
	Text    string
	Emotion string
}

// EmotionFunc maps reply text to an emotion label.
type EmotionFunc func(text string) string

// Splitter turns full replies into ordered sentence units.
type Splitter struct {
	emotion EmotionFunc
}

// NewSplitter creates a Splitter. emotion may be nil, in which case units
// carry an empty label.
func NewSplitter(emotion EmotionFunc) *Splitter {
	return &Splitter{emotion: emotion}
}

// Split scans fullText once and returns the ordered sentence units. A
// sentence boundary is '.', '!', '?' or a newline; boundary characters are
// kept in the emitted text. Trailing text after the last boundary is emitted
// as a final unit if it passes the minimum-content check.
func (s *Splitter) Split(fullText string) []Unit {
	label := ""
	if s.emotion != nil {
		label = s.emotion(fullText)
	}

	var units []Unit
	var b strings.Builder
	flush := func() {
		candidate := strings.TrimSpace(b.String())
		b.Reset()
		if hasContent(candidate) {
			units = append(units, Unit{Text: candidate, Emotion: label})
		}
	}

	for _, r := range fullText {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if isBoundary(r) {
			flush()
		}
	}
	flush()
	return units
}

func isBoundary(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// hasContent reports whether the candidate keeps at least minContent runes
// once trailing punctuation is stripped.
func hasContent(candidate string) bool {
	trimmed := strings.TrimRight(candidate, ".!?,;: \t")
	return utf8.RuneCountInString(trimmed) >= minContent
}
