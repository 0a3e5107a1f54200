// Package facts mines explicit preference statements from finished turns
// and persists them to the long-term memory store.
//
// Extraction is fire-and-forget: it runs on its own goroutine per turn and
// never delays the spoken response. Every failure is logged and swallowed;
// conversation state is never touched.
package facts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miravoice/mira/pkg/memory"
	"github.com/miravoice/mira/pkg/provider/llm"
)

const (
	// sentinel is what the model must answer when a line carries no
	// preference statement.
	sentinel = "NONE"

	// factDelimiter separates multiple facts in one model answer.
	factDelimiter = ";"

	// minFactLen discards fragments too short to be a usable fact.
	minFactLen = 5

	defaultTimeout = 30 * time.Second
)

const promptTemplate = `You extract explicit personal preference statements from one line of dialogue.
Answer with each fact as a short third-person statement, separated by "` + factDelimiter + `".
Answer with exactly ` + sentinel + ` when the line contains no preference statement.

Line: "I really love chocobo racing but I can't stand pineapple on pizza"
Facts: loves chocobo racing` + factDelimiter + ` dislikes pineapple on pizza

Line: "What time is it over there?"
Facts: ` + sentinel + `

Line: %q
Facts:`

// Extractor runs background fact extraction over completed turns.
type Extractor struct {
	provider  llm.Provider
	store     memory.Store
	userLabel string
	charLabel string
	timeout   time.Duration
	log       *slog.Logger

	wg sync.WaitGroup
}

// New creates an Extractor. userLabel and charLabel tag which party
// expressed a fact.
func New(provider llm.Provider, store memory.Store, userLabel, charLabel string, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		provider:  provider,
		store:     store,
		userLabel: userLabel,
		charLabel: charLabel,
		timeout:   defaultTimeout,
		log:       log,
	}
}

// ExtractAndStore kicks off extraction for one finished turn and returns
// immediately. Two independent deterministic completions run, one over the
// user text and one over the assistant text.
func (e *Extractor) ExtractAndStore(ctx context.Context, userText, assistantText string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, e.userLabel, userText)
		e.run(ctx, e.charLabel, assistantText)
	}()
}

// Wait blocks until all in-flight extractions finish. Used on shutdown.
func (e *Extractor) Wait() {
	e.wg.Wait()
}

// run extracts facts from one line and persists them under owner.
func (e *Extractor) run(ctx context.Context, owner, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Generate(callCtx, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		e.log.Warn("fact extraction call failed", "owner", owner, "error", err)
		return
	}

	for _, fact := range parseFacts(resp) {
		if err := e.store.Save(ctx, memory.Fact{Owner: owner, Text: fact}); err != nil {
			e.log.Warn("fact save failed", "owner", owner, "error", err)
		}
	}
}

// parseFacts splits a model answer into surviving fact strings. Candidates
// equal to the sentinel, or shorter than the minimum length after trimming a
// dangling sentinel suffix, are dropped.
func parseFacts(resp string) []string {
	var facts []string
	for _, candidate := range strings.Split(resp, factDelimiter) {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimSpace(strings.TrimSuffix(candidate, sentinel))
		if candidate == "" || strings.EqualFold(candidate, sentinel) {
			continue
		}
		if len(candidate) < minFactLen {
			continue
		}
		facts = append(facts, candidate)
	}
	return facts
}
