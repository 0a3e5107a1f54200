// Package world holds the typed location registry the character can travel
// to. Each location carries a display name, a day/night description pair
// used when rebuilding the system prompt, and the spoken aliases (including
// common mis-transcriptions) the command router matches against.
//
// Locations are keyed by an enumerated identifier rather than free strings
// so classification and context lookup stay exhaustive-checkable.
package world

import (
	"math/rand"
	"strings"
)

// ID identifies a location.
type ID int

const (
	LimsaLominsa ID = iota
	Gridania
	Uldah
	Kugane
	GoldSaucer
	CostaDelSol
)

// nightStartHour and nightEndHour bound the night-time description window.
const (
	nightEndHour   = 6
	nightStartHour = 20
)

// Location is one registry entry.
type Location struct {
	ID    ID
	Name  string
	Day   string
	Night string

	// Aliases are lowercase spoken forms, including frequent STT
	// mis-hearings, matched by the command router.
	Aliases []string
}

// Description returns the day or night description for the given local hour.
func (l Location) Description(hour int) string {
	if hour < nightEndHour || hour >= nightStartHour {
		return l.Night
	}
	return l.Day
}

// registry is ordered; Random and All preserve this order for determinism in
// tests.
var registry = []Location{
	{
		ID:      LimsaLominsa,
		Name:    "Limsa Lominsa",
		Day:     "the harbour city of Limsa Lominsa, gulls wheeling over white stone bridges and a bright sea wind",
		Night:   "Limsa Lominsa at night, lamplight on the tide and the distant bells of moored ships",
		Aliases: []string{"limsa lominsa", "limsa", "leemsa", "limsa lominza", "the harbour", "harbor city"},
	},
	{
		ID:      Gridania,
		Name:    "Gridania",
		Day:     "the forest city of Gridania, sunlight scattered through ancient canopy onto mossy walkways",
		Night:   "Gridania after dark, fireflies drifting between the great trees and quiet water wheels",
		Aliases: []string{"gridania", "gridanya", "greedania", "the forest", "forest city"},
	},
	{
		ID:      Uldah,
		Name:    "Ul'dah",
		Day:     "the desert trade city of Ul'dah, gilded domes shimmering over crowded bazaars",
		Night:   "Ul'dah by night, torch-lit alleys and the hum of late merchants under cold desert stars",
		Aliases: []string{"ul'dah", "uldah", "ool dah", "ulda", "the desert", "desert city"},
	},
	{
		ID:      Kugane,
		Name:    "Kugane",
		Day:     "the eastern port of Kugane, red lacquered rooftops and steam rising from tea houses",
		Night:   "Kugane at night, paper lanterns swaying above the harbour boardwalks",
		Aliases: []string{"kugane", "kugani", "koogane", "the east", "eastern port"},
	},
	{
		ID:      GoldSaucer,
		Name:    "the Gold Saucer",
		Day:     "the Gold Saucer, a riot of fanfares, fortunes and flashing game floors",
		Night:   "the Gold Saucer — it never sleeps, fireworks bursting over the night games",
		Aliases: []string{"gold saucer", "the saucer", "goldsaucer", "golden saucer", "casino"},
	},
	{
		ID:      CostaDelSol,
		Name:    "Costa del Sol",
		Day:     "the beaches of Costa del Sol, turquoise shallows and striped parasols",
		Night:   "Costa del Sol in the evening, warm sand and a slow violet surf",
		Aliases: []string{"costa del sol", "costa", "the beach", "beach", "seaside"},
	},
}

// All returns the full registry in declaration order. The returned slice is
// shared; callers must not mutate it.
func All() []Location {
	return registry
}

// Get returns the location for id.
func Get(id ID) (Location, bool) {
	for _, l := range registry {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

// Random picks a location using rng, excluding current so a random travel
// command always actually moves somewhere.
func Random(rng *rand.Rand, current ID) Location {
	candidates := make([]Location, 0, len(registry))
	for _, l := range registry {
		if l.ID != current {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return registry[0]
	}
	return candidates[rng.Intn(len(candidates))]
}

// MatchAlias finds the location whose name or alias occurs as a substring of
// text (case-insensitive). Longer aliases are preferred so "gold saucer"
// wins over a hypothetical shorter overlap.
func MatchAlias(text string) (Location, bool) {
	lower := strings.ToLower(text)
	var (
		best    Location
		bestLen int
		found   bool
	)
	for _, l := range registry {
		for _, alias := range append([]string{strings.ToLower(l.Name)}, l.Aliases...) {
			if len(alias) > bestLen && strings.Contains(lower, alias) {
				best, bestLen, found = l, len(alias), true
			}
		}
	}
	return best, found
}

// SpokenNames returns every name and alias in the registry paired with its
// location, for phonetic matching in the command router.
func SpokenNames() map[string]ID {
	out := make(map[string]ID)
	for _, l := range registry {
		out[strings.ToLower(l.Name)] = l.ID
		for _, a := range l.Aliases {
			out[a] = l.ID
		}
	}
	return out
}
