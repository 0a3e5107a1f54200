package router

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Phonetic matching thresholds. A candidate with Double Metaphone overlap is
// accepted above phoneticThreshold; without overlap a higher pure
// Jaro-Winkler score is required.
const (
	phoneticThreshold = 0.70
	fuzzyThreshold    = 0.85
)

// phoneticMatch finds the entry in entities most phonetically similar to
// phrase. Candidates are first filtered by Double Metaphone code overlap,
// then ranked by Jaro-Winkler similarity on the original strings. When no
// phonetic candidate exists, a pure similarity pass with the stricter fuzzy
// threshold is used as a fallback.
//
// Returns the matched entity and true, or "" and false when nothing scores
// above its threshold.
func phoneticMatch(phrase string, entities []string) (string, bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" || len(entities) == 0 {
		return "", false
	}
	phraseTokens := strings.Fields(phrase)
	phraseCodes := metaphoneCodes(phraseTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, entity := range entities {
		entityLower := strings.ToLower(strings.TrimSpace(entity))
		if entityLower == "" {
			continue
		}
		entityTokens := strings.Fields(entityLower)
		overlap := codesOverlap(phraseCodes, metaphoneCodes(entityTokens))
		score := bestSimilarity(phraseTokens, entityTokens, phrase, entityLower)

		switch {
		case overlap && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = entity, score, true
			}
		case !bestPhonetic && score >= fuzzyThreshold && score > bestScore:
			best, bestScore = entity, score
		}
	}
	return best, best != ""
}

// metaphoneCodes returns the union of Double Metaphone codes for the tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity takes the highest Jaro-Winkler score across full-string,
// space-stripped, and best pairwise token comparisons, which copes with one
// spoken word landing as two transcribed words and vice versa.
func bestSimilarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
