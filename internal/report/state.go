package report

import (
	"sync"
	"time"
)

// Status is a keyword task's lifecycle state. Terminal states are
// StatusComplete and StatusError; there is no transition back within a run.
type Status string

const (
	StatusPending  Status = "pending"
	StatusLoading  Status = "loading"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Stage1Result is the per-keyword progress record exposed to observers
// while a run is in flight. One entry per enabled keyword, index-aligned
// to the input keyword list for stable ordering.
type Stage1Result struct {
	Keyword        string
	Status         Status
	Result         string
	Error          string
	Cost           float64
	StartTime      time.Time
	Duration       time.Duration
	SearchQuery    string
	ModelUsed      string
	Parameters     map[string]any
	StoriesFound   int
	ResponseLength int
}

// Progress is a consistent snapshot of run-level aggregates.
type Progress struct {
	Completed int
	Total     int
	Cards     int
	Cost      float64
}

// RunState owns all mutable state for one generation run. Every worker
// writes only to its own claimed index; the aggregate counters are
// read-modify-write under the same lock so interleaved completions never
// lose updates.
type RunState struct {
	ReportID string

	mu        sync.Mutex
	results   []Stage1Result
	completed int
	cards     int
	cost      float64
}

// newRunState initializes one Stage1Result per keyword, all loading: the
// pool starts all workers near-simultaneously.
func newRunState(reportID string, keywords []string) *RunState {
	results := make([]Stage1Result, len(keywords))
	for i, kw := range keywords {
		results[i] = Stage1Result{Keyword: kw, Status: StatusLoading}
	}
	return &RunState{ReportID: reportID, results: results}
}

func (s *RunState) markLoading(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[index].Status = StatusLoading
	s.results[index].StartTime = time.Now()
}

// complete moves one entry to its terminal success state, embedding the
// diagnostic fields, and folds the task's cost and card count into the
// run aggregates.
func (s *RunState) complete(index int, r Stage1Result, cards int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &s.results[index]
	r.Keyword = entry.Keyword
	r.Status = StatusComplete
	r.StartTime = entry.StartTime
	r.Duration = time.Since(entry.StartTime)
	*entry = r

	s.completed++
	s.cards += cards
	s.cost += r.Cost
}

// fail moves one entry to its terminal error state. Failed entries
// contribute zero cost and cards but still count as settled.
func (s *RunState) fail(index int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &s.results[index]
	entry.Status = StatusError
	entry.Error = message
	entry.Duration = time.Since(entry.StartTime)
	s.completed++
}

// abort settles one entry after cancellation. No error message is
// recorded; a cancelled run's state is discarded wholesale.
func (s *RunState) abort(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &s.results[index]
	entry.Status = StatusError
	entry.Duration = time.Since(entry.StartTime)
	s.completed++
}

// Snapshot returns a copy of all per-keyword records, consistent at one
// instant even while workers are mutating other indices.
func (s *RunState) Snapshot() []Stage1Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Stage1Result, len(s.results))
	copy(out, s.results)
	return out
}

// Progress returns the run-level aggregates.
func (s *RunState) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		Completed: s.completed,
		Total:     len(s.results),
		Cards:     s.cards,
		Cost:      s.cost,
	}
}
