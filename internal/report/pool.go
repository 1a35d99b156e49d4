package report

import (
	"context"
	"sync"
	"sync/atomic"
)

// runPool processes items with at most concurrency workers. Results land
// at the same index as their input item regardless of completion order.
// Workers pull the next unclaimed index from a shared cursor, so a slow
// item never blocks unrelated ones. Cancellation is cooperative: workers
// stop claiming new items once ctx is done, but the item each worker is
// on runs to completion (fn is expected to observe ctx itself).
func runPool[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, index int, item T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(items) {
					return
				}
				if ctx.Err() != nil {
					return
				}
				results[i] = fn(ctx, i, items[i])
			}
		}()
	}
	wg.Wait()
	return results
}
