package report

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPoolIndexStable(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	// Earlier items finish later; results must still line up by index.
	results := runPool(context.Background(), items, 3, func(ctx context.Context, index int, item string) string {
		time.Sleep(time.Duration(len(items)-index) * 5 * time.Millisecond)
		return item + "!"
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, item := range items {
		if results[i] != item+"!" {
			t.Errorf("results[%d] = %q, want %q", i, results[i], item+"!")
		}
	}
}

func TestRunPoolConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int64

	runPool(context.Background(), make([]int, 20), 3, func(ctx context.Context, index, item int) int {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return 0
	})

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency %d exceeds bound 3", got)
	}
	if got := peak.Load(); got < 2 {
		t.Errorf("expected real parallelism, peak was %d", got)
	}
}

func TestRunPoolFewerItemsThanWorkers(t *testing.T) {
	results := runPool(context.Background(), []int{10, 20}, 5, func(ctx context.Context, index, item int) int {
		return item * 2
	})
	if results[0] != 20 || results[1] != 40 {
		t.Errorf("unexpected results %v", results)
	}
}

func TestRunPoolEmpty(t *testing.T) {
	results := runPool(context.Background(), nil, 3, func(ctx context.Context, index int, item string) string {
		t.Error("fn must not be called for empty input")
		return ""
	})
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRunPoolStopsClaimingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int64
	runPool(ctx, make([]int, 50), 2, func(ctx context.Context, index, item int) int {
		started.Add(1)
		cancel()
		return 0
	})

	// The two workers may each have claimed an item before observing the
	// cancel, but the remaining items stay unclaimed.
	if got := started.Load(); got > 4 {
		t.Errorf("expected early stop, %d items ran", got)
	}
}
