package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miravoice/mira/pkg/memory"
)

var errBoom = errors.New("boom")

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", TripAfter: 3, CoolDown: time.Hour}, nil)

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if !b.Tripped() {
		t.Fatal("breaker should be tripped after 3 failures")
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn must not run while breaker is open")
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", TripAfter: 2, CoolDown: time.Hour}, nil)

	b.Do(func() error { return errBoom })
	b.Do(func() error { return nil })
	b.Do(func() error { return errBoom })

	if b.Tripped() {
		t.Fatal("interleaved success must reset the failure run")
	}
}

func TestBreakerProbesAfterCoolDown(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", TripAfter: 1, CoolDown: 10 * time.Millisecond}, nil)

	b.Do(func() error { return errBoom })
	if !b.Tripped() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)

	// Successful probe closes the breaker.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.Tripped() {
		t.Error("breaker should be closed after successful probe")
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", TripAfter: 1, CoolDown: 10 * time.Millisecond}, nil)

	b.Do(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v", err)
	}
	if !b.Tripped() {
		t.Error("failed probe must re-open the breaker")
	}
}

type flakyStore struct {
	queryErr error
	facts    []memory.Fact
	saved    []memory.Fact
}

func (f *flakyStore) Query(context.Context, []string) ([]memory.Fact, error) {
	return f.facts, f.queryErr
}

func (f *flakyStore) Save(_ context.Context, fact memory.Fact) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	f.saved = append(f.saved, fact)
	return nil
}

func TestSafeStoreDegradesWhenOpen(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{queryErr: errBoom}
	b := NewBreaker(BreakerConfig{Name: "memory", TripAfter: 1, CoolDown: time.Hour}, nil)
	s := NewSafeStore(inner, b, nil)

	if _, err := s.Query(context.Background(), []string{"x"}); !errors.Is(err, errBoom) {
		t.Fatalf("first query err = %v, want boom", err)
	}

	// Breaker is now open: queries degrade to no facts, no error.
	facts, err := s.Query(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("degraded query err = %v", err)
	}
	if facts != nil {
		t.Errorf("degraded query facts = %v, want nil", facts)
	}

	// Saves still surface the rejection.
	if err := s.Save(context.Background(), memory.Fact{Owner: "a", Text: "b"}); !errors.Is(err, ErrOpen) {
		t.Errorf("save err = %v, want ErrOpen", err)
	}
}

type flakySender struct {
	err   error
	body  string
	calls int
}

func (f *flakySender) Send(context.Context, string, string) (string, error) {
	f.calls++
	return f.body, f.err
}

func TestSafeWebhookShortCircuitsWhenOpen(t *testing.T) {
	t.Parallel()

	inner := &flakySender{err: errBoom}
	b := NewBreaker(BreakerConfig{Name: "webhook", TripAfter: 2, CoolDown: time.Hour}, nil)
	w := NewSafeWebhook(inner, b, nil)

	for i := 0; i < 2; i++ {
		if _, err := w.Send(context.Background(), "mounts", "fat chocobo"); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}

	if _, err := w.Send(context.Background(), "mounts", "fat chocobo"); !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestSafeWebhookPassthrough(t *testing.T) {
	t.Parallel()

	inner := &flakySender{body: "Summoned the fat chocobo!"}
	b := NewBreaker(BreakerConfig{Name: "webhook"}, nil)
	w := NewSafeWebhook(inner, b, nil)

	body, err := w.Send(context.Background(), "mounts", "fat chocobo")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if body != "Summoned the fat chocobo!" {
		t.Errorf("body = %q", body)
	}
}

func TestSafeStorePassthrough(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{facts: []memory.Fact{{Owner: "alex", Text: "mains bard"}}}
	b := NewBreaker(BreakerConfig{Name: "memory"}, nil)
	s := NewSafeStore(inner, b, nil)

	facts, err := s.Query(context.Background(), []string{"bard"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(facts) != 1 || facts[0].Text != "mains bard" {
		t.Errorf("facts = %+v", facts)
	}

	if err := s.Save(context.Background(), memory.Fact{Owner: "alex", Text: "collects minions"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(inner.saved) != 1 {
		t.Errorf("saved = %+v", inner.saved)
	}
}
