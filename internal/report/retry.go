package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const maxRetries = 2

// backoffDelay grows exponentially from one second, capped at five.
func backoffDelay(attempt int) time.Duration {
	delay := time.Second << attempt
	if delay > 5*time.Second {
		delay = 5 * time.Second
	}
	return delay
}

// retryable reports whether a search failure is worth another attempt.
// API rejections, timeouts, malformed envelopes, and transport errors are
// transient from the caller's point of view. Cancellation is deliberate
// and never retried; content parse failures do not surface here at all,
// they settle the task as a structured zero-card result.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// searchWithRetry runs one keyword search with up to maxRetries extra
// attempts. Every outcome settles the task: success and content parse
// failures settle inside search, exhausted attempts through state.fail,
// cancellation through state.abort without an error message.
func (g *Generator) searchWithRetry(ctx context.Context, index int, keyword string, state *RunState) searchResult {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			log.Printf("Retrying %q (attempt %d/%d) after %s", keyword, attempt+1, maxRetries+1, delay)
			if !g.sleep(ctx, delay) {
				state.abort(index)
				return searchResult{Err: ctx.Err()}
			}
		}

		res := g.search(ctx, index, keyword, state)
		if res.Err == nil {
			return res
		}
		if errors.Is(res.Err, context.Canceled) {
			state.abort(index)
			return res
		}
		if !retryable(res.Err) {
			break
		}
		lastErr = res.Err
	}

	state.fail(index, fmt.Sprintf("Search failed after %d attempts: %v", maxRetries+1, lastErr))
	return searchResult{Err: lastErr}
}

// sleep waits for the backoff delay unless the run is cancelled first.
// Returns false on cancellation. The sleep function is injectable so
// retry tests observe delays instead of waiting them out.
func (g *Generator) sleep(ctx context.Context, d time.Duration) bool {
	if g.sleepFunc != nil {
		return g.sleepFunc(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
