package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newsforge/newsforge/internal/openrouter"
)

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, c := range cases {
		if got := backoffDelay(c.attempt); got != c.want {
			t.Errorf("backoffDelay(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	completer := &fakeCompleter{respond: func(keyword string, call int) (*openrouter.Payload, error) {
		if call < 3 {
			return nil, &openrouter.TimeoutError{After: time.Second}
		}
		return storiesJSON(story("Late Story", "Tech", 7)), nil
	}}
	gen := newTestGenerator(completer, &memCardSink{}, &memHistorySink{})

	var delays []time.Duration
	gen.sleepFunc = func(ctx context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return true
	}

	state := newRunState("report-test", []string{"kw"})
	res := gen.searchWithRetry(context.Background(), 0, "kw", state)

	if res.Err != nil {
		t.Fatalf("expected eventual success, got %v", res.Err)
	}
	if completer.callCount("kw") != 3 {
		t.Errorf("expected 3 attempts, got %d", completer.callCount("kw"))
	}
	// First retry waits 1s, second 2s.
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("delays = %v", delays)
	}
	if state.Snapshot()[0].Status != StatusComplete {
		t.Errorf("unexpected status %s", state.Snapshot()[0].Status)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	completer := &fakeCompleter{respond: func(keyword string, call int) (*openrouter.Payload, error) {
		return nil, &openrouter.APIError{Message: "still down"}
	}}
	gen := newTestGenerator(completer, &memCardSink{}, &memHistorySink{})

	var delays []time.Duration
	gen.sleepFunc = func(ctx context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return true
	}

	state := newRunState("report-test", []string{"kw"})
	res := gen.searchWithRetry(context.Background(), 0, "kw", state)

	if res.Err == nil {
		t.Fatal("expected failure after exhausted retries")
	}
	if completer.callCount("kw") != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", completer.callCount("kw"))
	}
	if len(delays) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %v", delays)
	}

	entry := state.Snapshot()[0]
	if entry.Status != StatusError {
		t.Errorf("unexpected status %s", entry.Status)
	}
	if entry.Error == "" {
		t.Error("expected error message recorded")
	}
}

func TestRetryAbortsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	completer := &fakeCompleter{respond: func(keyword string, call int) (*openrouter.Payload, error) {
		cancel()
		return nil, context.Canceled
	}}
	gen := newTestGenerator(completer, &memCardSink{}, &memHistorySink{})

	slept := false
	gen.sleepFunc = func(ctx context.Context, d time.Duration) bool {
		slept = true
		return ctx.Err() == nil
	}

	state := newRunState("report-test", []string{"kw"})
	res := gen.searchWithRetry(ctx, 0, "kw", state)

	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if completer.callCount("kw") != 1 {
		t.Errorf("cancellation must not retry, got %d attempts", completer.callCount("kw"))
	}
	if slept {
		t.Error("cancellation must not wait out a backoff")
	}
	entry := state.Snapshot()[0]
	if entry.Status != StatusError {
		t.Errorf("unexpected status %s", entry.Status)
	}
	if entry.Error != "" {
		t.Errorf("cancellation must not record an error message, got %q", entry.Error)
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	completer := &fakeCompleter{respond: func(keyword string, call int) (*openrouter.Payload, error) {
		return nil, &openrouter.TimeoutError{After: time.Second}
	}}
	gen := newTestGenerator(completer, &memCardSink{}, &memHistorySink{})

	gen.sleepFunc = func(ctx context.Context, d time.Duration) bool {
		cancel()
		return false
	}

	state := newRunState("report-test", []string{"kw"})
	res := gen.searchWithRetry(ctx, 0, "kw", state)

	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if completer.callCount("kw") != 1 {
		t.Errorf("expected no attempt after aborted backoff, got %d", completer.callCount("kw"))
	}
}
