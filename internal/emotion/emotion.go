// Package emotion infers a coarse emotion label from response text using
// keyword and punctuation heuristics. The label drives the character's
// expression effects; it is advisory only, so the heuristic favours being
// cheap and deterministic over being clever.
package emotion

import "strings"

// Label is a coarse emotion classification.
type Label string

const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Surprised Label = "surprised"
)

// keyword tables are checked in priority order: anger beats sadness beats
// joy, because a mixed sentence usually reads with its strongest emotion.
var (
	angryWords = []string{
		"angry", "furious", "annoyed", "annoying", "hate", "unacceptable",
		"outrageous", "how dare", "grr", "ugh",
	}
	sadWords = []string{
		"sad", "sorry", "unfortunately", "miss you", "lonely", "crying",
		"depressing", "sigh", "alas", "heartbroken",
	}
	happyWords = []string{
		"happy", "glad", "great", "wonderful", "love", "amazing", "yay",
		"awesome", "excited", "fantastic", "hehe", "haha", "fun",
	}
	surprisedWords = []string{
		"wow", "whoa", "really?", "no way", "unbelievable", "incredible",
		"surprised", "can't believe", "what?!",
	}
)

// Infer returns the emotion label for text. Unmatched text is Neutral.
func Infer(text string) Label {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, angryWords):
		return Angry
	case containsAny(lower, sadWords):
		return Sad
	case containsAny(lower, surprisedWords) || strings.Contains(lower, "?!"):
		return Surprised
	case containsAny(lower, happyWords) || strings.Contains(lower, "!"):
		return Happy
	default:
		return Neutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
