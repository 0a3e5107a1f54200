// Package router classifies transcribed (or typed) input into one of three
// routes: a location/travel command, an informational webhook command, or
// ordinary conversation.
//
// Classification happens after phonetic normalization and is deliberately
// fail-open: anything that looks like a command but matches no known
// keyword family falls through to ordinary chat rather than erroring, so a
// mis-heard command still gets a conversational answer.
package router

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"github.com/miravoice/mira/internal/world"
)

// Kind is the classification result category.
type Kind int

const (
	// KindChat routes to the conversation session.
	KindChat Kind = iota

	// KindLocation changes the character's location without a model call.
	KindLocation

	// KindWebhook dispatches an informational command to the webhook.
	KindWebhook
)

// Action selects the webhook query family.
type Action string

const (
	ActionMounts     Action = "mounts"
	ActionMinions    Action = "minions"
	ActionHairstyles Action = "hairstyles"
	ActionEmotes     Action = "emotes"
	ActionBardings   Action = "bardings"
)

// movementVerbs mark a command as a travel request. Checked before keyword
// families: "go to the mounts vendor" is travel, not a mounts lookup.
var movementVerbs = []string{
	"move", "go to", "go ", "let's go", "teleport", "take me", "somewhere",
}

// actionKeywords maps containment keywords to their webhook family, in
// priority order.
var actionKeywords = []struct {
	keywords []string
	action   Action
}{
	{[]string{"mount"}, ActionMounts},
	{[]string{"minion"}, ActionMinions},
	{[]string{"hairstyle", "haircut", "hair"}, ActionHairstyles},
	{[]string{"emote"}, ActionEmotes},
	{[]string{"barding"}, ActionBardings},
}

// arrivalLines are the spoken confirmations for a completed location change.
// %s is the location display name.
var arrivalLines = []string{
	"Here we are — %s!",
	"We made it to %s.",
	"And... welcome to %s!",
	"Ta-da! This is %s.",
}

// fillerLines hide webhook latency: one is spoken immediately, before the
// webhook response arrives.
var fillerLines = []string{
	"Let me check real quick...",
	"One moment, I'm looking that up.",
	"Hmm, let me see what I can find.",
	"Give me a second to check.",
}

// Decision is the classification outcome plus the side-effect payloads the
// caller must apply: history notes and spoken lines for location changes,
// the filler line for webhook dispatches.
type Decision struct {
	Kind Kind

	// Text is the conversational text (KindChat) or the webhook query text
	// (KindWebhook), already normalized.
	Text string

	// Location fields, set for KindLocation.
	Location   world.Location
	RandomPick bool

	// Confirmation is the spoken arrival line; HistoryNote is the synthetic
	// assistant-history entry recording the move.
	Confirmation string
	HistoryNote  string

	// Action and Filler, set for KindWebhook.
	Action Action
	Filler string
}

// Router performs normalization and classification. Safe for concurrent
// use; the random source is guarded internally.
type Router struct {
	prefix     string
	normalizer *Normalizer
	names      map[string]world.ID
	spoken     []string

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Router. prefix is the spoken command prefix (typically
// "hey <name>"); it is matched case-insensitively after normalization.
func New(prefix string, normalizer *Normalizer, rng *rand.Rand) *Router {
	names := world.SpokenNames()
	spoken := make([]string, 0, len(names))
	for n := range names {
		spoken = append(spoken, n)
	}
	return &Router{
		prefix:     strings.ToLower(strings.TrimSpace(prefix)),
		normalizer: normalizer,
		names:      names,
		spoken:     spoken,
		rng:        rng,
	}
}

// Classify normalizes raw and routes it. current is the character's present
// location, excluded from random travel picks.
func (r *Router) Classify(raw string, current world.ID) Decision {
	text := strings.TrimSpace(r.normalizer.Apply(raw))

	body, isCommand := r.stripPrefix(text)
	if !isCommand {
		return Decision{Kind: KindChat, Text: text}
	}

	lower := strings.ToLower(body)

	if containsMovementVerb(lower) {
		return r.classifyTravel(body, lower, current)
	}

	for _, family := range actionKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return Decision{
					Kind:   KindWebhook,
					Text:   body,
					Action: family.action,
					Filler: r.pick(fillerLines),
				}
			}
		}
	}

	// Unrecognized command content: fail open into conversation, keeping
	// the full text so the model sees how it was addressed.
	return Decision{Kind: KindChat, Text: text}
}

// Travel resolves a direct travel request (the control surface's travel
// command), bypassing prefix detection. An empty target picks a random
// location other than current.
func (r *Router) Travel(target string, current world.ID) Decision {
	lower := strings.ToLower(strings.TrimSpace(target))
	if lower == "" {
		r.mu.Lock()
		loc := world.Random(r.rng, current)
		r.mu.Unlock()
		return Decision{
			Kind:         KindLocation,
			Location:     loc,
			RandomPick:   true,
			Confirmation: fmt.Sprintf(r.pick(arrivalLines), loc.Name),
			HistoryNote:  fmt.Sprintf("*arrives at %s*", loc.Name),
		}
	}
	return r.classifyTravel(lower, lower, current)
}

// classifyTravel resolves the travel target: direct alias containment first,
// then phonetic matching over the remaining words, then a random pick.
// An unmatched target is never an error.
func (r *Router) classifyTravel(body, lower string, current world.ID) Decision {
	target, ok := world.MatchAlias(lower)
	if !ok {
		if name, matched := phoneticMatch(stripMovementVerbs(lower), r.spoken); matched {
			if loc, found := world.Get(r.names[name]); found {
				target, ok = loc, true
			}
		}
	}

	random := false
	if !ok {
		r.mu.Lock()
		target = world.Random(r.rng, current)
		r.mu.Unlock()
		random = true
	}

	return Decision{
		Kind:         KindLocation,
		Location:     target,
		RandomPick:   random,
		Confirmation: fmt.Sprintf(r.pick(arrivalLines), target.Name),
		HistoryNote:  fmt.Sprintf("*arrives at %s*", target.Name),
	}
}

// stripPrefix reports whether text is a command and returns the content
// after the prefix. Commands are the bare prefix, prefix + space, or prefix
// followed by a non-alphanumeric rune (trailing punctuation tolerance).
func (r *Router) stripPrefix(text string) (string, bool) {
	if r.prefix == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	if lower == r.prefix {
		return "", true
	}
	if !strings.HasPrefix(lower, r.prefix) {
		return "", false
	}
	rest := text[len(r.prefix):]
	first, _ := firstRune(rest)
	if first != ' ' && (unicode.IsLetter(first) || unicode.IsDigit(first)) {
		// Prefix is a fragment of a longer word ("mirage" vs "mira").
		return "", false
	}
	return strings.TrimLeft(rest, " ,.!?;:-"), true
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

func containsMovementVerb(lower string) bool {
	for _, v := range movementVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// stripMovementVerbs removes verb phrases so the phonetic matcher only sees
// the candidate location words.
func stripMovementVerbs(lower string) string {
	out := lower
	for _, v := range movementVerbs {
		out = strings.ReplaceAll(out, v, " ")
	}
	return strings.Join(strings.Fields(out), " ")
}

func (r *Router) pick(lines []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lines[r.rng.Intn(len(lines))]
}
