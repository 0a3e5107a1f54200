package app

import (
	"context"
	"time"

	"github.com/miravoice/mira/internal/observe"
	"github.com/miravoice/mira/pkg/provider/llm"
	"github.com/miravoice/mira/pkg/provider/tts"
)

// measuredLLM records call latency and failures around a chat provider.
type measuredLLM struct {
	inner llm.Provider
	m     *observe.Metrics
}

var _ llm.Provider = measuredLLM{}

func (p measuredLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	start := time.Now()
	reply, err := p.inner.Chat(ctx, messages)
	p.m.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.m.RecordProviderError(ctx, "llm", "chat")
	}
	return reply, err
}

func (p measuredLLM) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := p.inner.Generate(ctx, prompt)
	if err != nil {
		p.m.RecordProviderError(ctx, "llm", "generate")
	}
	return reply, err
}

// measuredTTS records per-chunk synthesis latency and failures.
type measuredTTS struct {
	inner tts.Synthesizer
	m     *observe.Metrics
}

var _ tts.Synthesizer = measuredTTS{}

func (p measuredTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()
	data, err := p.inner.Synthesize(ctx, text)
	p.m.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.m.RecordProviderError(ctx, "tts", "synthesize")
	}
	return data, err
}
