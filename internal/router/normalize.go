package router

import (
	"fmt"
	"regexp"
	"strings"
)

// rule is one ordered replacement applied during normalization.
type rule struct {
	pattern *regexp.Regexp
	replace string
}

// Normalizer collapses known phonetic mis-transcriptions into canonical
// forms. It runs before classification because command detection is
// exact-prefix matching, not fuzzy: "hey miro" must become "hey mira"
// before the prefix check can see it.
//
// Rules are applied in order; later rules see the output of earlier ones.
// A Normalizer is read-only after construction and safe for concurrent use.
type Normalizer struct {
	rules []rule
}

// NewNormalizer builds a Normalizer for the given character name plus the
// supplied extra mis-hearing → canonical pairs (applied after the built-in
// name rules, in map-independent order as given).
func NewNormalizer(characterName string, extra [][2]string) (*Normalizer, error) {
	n := &Normalizer{}

	canonical := strings.ToLower(characterName)
	for _, miss := range nameMishearings(canonical) {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(miss) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("router: compile name rule %q: %w", miss, err)
		}
		n.rules = append(n.rules, rule{pattern: re, replace: canonical})
	}

	for _, pair := range extra {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(pair[0]) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("router: compile rule %q: %w", pair[0], err)
		}
		n.rules = append(n.rules, rule{pattern: re, replace: pair[1]})
	}
	return n, nil
}

// Apply runs every rule over text in order and returns the result.
func (n *Normalizer) Apply(text string) string {
	for _, r := range n.rules {
		text = r.pattern.ReplaceAllString(text, r.replace)
	}
	return text
}

// nameMishearings returns the spellings Whisper commonly produces for the
// character's name. Only the default persona name has a curated list;
// other names rely on the phonetic matcher instead.
func nameMishearings(name string) []string {
	switch name {
	case "mira":
		return []string{"mirra", "meera", "miro", "mila", "myra", "mirah", "mir a"}
	default:
		return nil
	}
}
