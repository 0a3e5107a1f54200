package synth

import (
	"strings"
	"unicode"
)

// splitChunks cuts text into pieces no longer than budget runes. Each cut
// prefers the nearest preceding sentence punctuation inside the budget, then
// the nearest space, and only hard-cuts when a single word exceeds the whole
// budget.
func splitChunks(text string, budget int) []string {
	runes := []rune(text)
	var chunks []string

	for len(runes) > 0 {
		if len(runes) <= budget {
			chunks = appendChunk(chunks, runes)
			break
		}

		cut := -1
		for i := budget - 1; i >= 0; i-- {
			if isCutPunct(runes[i]) {
				cut = i + 1
				break
			}
		}
		if cut < 0 {
			for i := budget - 1; i >= 0; i-- {
				if unicode.IsSpace(runes[i]) {
					cut = i + 1
					break
				}
			}
		}
		if cut <= 0 {
			cut = budget
		}

		chunks = appendChunk(chunks, runes[:cut])
		runes = runes[cut:]
	}
	return chunks
}

func appendChunk(chunks []string, runes []rune) []string {
	s := strings.TrimSpace(string(runes))
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}

func isCutPunct(r rune) bool {
	switch r {
	case '.', '!', '?', ',', ';', ':':
		return true
	}
	return false
}

// sanitizeForTTS strips characters the synthesis server chokes on, keeping
// letters, digits, spaces and basic sentence punctuation, then collapses
// runs of whitespace.
func sanitizeForTTS(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '.' || r == ',' || r == '!' || r == '?' ||
			r == ';' || r == ':' || r == '\'' || r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
