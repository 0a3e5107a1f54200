package session

import "strings"

// minKeywordLen drops tokens too short to carry meaning ("a", "is", "to").
const minKeywordLen = 3

// stopWords are common English tokens excluded from memory-query keywords.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "had": {}, "his": {},
	"him": {}, "she": {}, "they": {}, "them": {}, "this": {}, "that": {},
	"with": {}, "what": {}, "when": {}, "where": {}, "which": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "about": {}, "your": {},
	"just": {}, "like": {}, "really": {}, "very": {}, "some": {},
	"there": {}, "here": {}, "then": {}, "than": {}, "been": {},
	"from": {}, "into": {}, "over": {}, "because": {}, "please": {},
	"want": {}, "dont": {}, "does": {}, "did": {}, "how": {}, "why": {},
	"who": {}, "its": {}, "were": {}, "tell": {}, "know": {},
}

// extractKeywords pulls the first topK meaningful tokens from text, in
// order of appearance, deduplicated. Tokens are lowercased runs of letters
// and digits; stop words and short tokens are skipped.
func extractKeywords(text string, topK int) []string {
	if topK <= 0 {
		return nil
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	seen := make(map[string]struct{}, topK)
	keywords := make([]string, 0, topK)
	for _, f := range fields {
		if len(f) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		keywords = append(keywords, f)
		if len(keywords) == topK {
			break
		}
	}
	return keywords
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z'
}
