// Package report orchestrates multi-keyword news generation runs: a
// bounded worker pool of keyword searches with retry, shared progress
// state, and a final aggregated history entry.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/newsforge/newsforge/internal/database"
	"github.com/newsforge/newsforge/internal/extract"
	"github.com/newsforge/newsforge/internal/openrouter"
)

// Concurrency bounds how many keyword searches run at once.
const Concurrency = 3

// ErrNoKeywords means a run was requested with no enabled keywords.
var ErrNoKeywords = errors.New("no enabled keywords to search")

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, params map[string]any) (*openrouter.Payload, error)
}

// Pricer converts token usage into dollars for a model.
type Pricer interface {
	Cost(modelID string, usage *openrouter.Usage) float64
}

// CardSink receives cards as each keyword task settles.
type CardSink interface {
	AddCards(cards []database.Card) error
}

// HistorySink receives the run's aggregate entry, exactly once per
// completed run.
type HistorySink interface {
	AddReportHistory(entry database.ReportHistory) error
}

// Options configures a Generator.
type Options struct {
	Completer    Completer
	Pricer       Pricer
	Cards        CardSink
	History      HistorySink
	Model        string
	Instructions string
	Parameters   *openrouter.Parameters
	Mode         string // "json" or "text"
	Rules        *extract.Rules
}

// Generator runs report generation. One Generator serves one run at a
// time; Snapshot and Progress observe the current run from other
// goroutines.
type Generator struct {
	completer    Completer
	pricer       Pricer
	cards        CardSink
	history      HistorySink
	model        string
	instructions string
	params       *openrouter.Parameters
	mode         string
	rules        *extract.Rules

	// sleepFunc overrides backoff waiting in tests.
	sleepFunc func(ctx context.Context, d time.Duration) bool

	// state is swapped atomically so Snapshot and Progress can observe
	// a run from other goroutines while Generate installs or clears it.
	state atomic.Pointer[RunState]
}

// New creates a Generator.
func New(opts Options) *Generator {
	return &Generator{
		completer:    opts.Completer,
		pricer:       opts.Pricer,
		cards:        opts.Cards,
		history:      opts.History,
		model:        opts.Model,
		instructions: opts.Instructions,
		params:       opts.Parameters,
		mode:         opts.Mode,
		rules:        opts.Rules,
	}
}

// Snapshot returns the current run's per-keyword records, or nil when no
// run has started.
func (g *Generator) Snapshot() []Stage1Result {
	state := g.state.Load()
	if state == nil {
		return nil
	}
	return state.Snapshot()
}

// Progress returns the current run's aggregates.
func (g *Generator) Progress() Progress {
	state := g.state.Load()
	if state == nil {
		return Progress{}
	}
	return state.Progress()
}

// Generate runs every enabled keyword through search and returns the
// aggregated history entry. On cancellation it returns ctx.Err() and
// writes no history entry; cards already pushed to the sink stay.
func (g *Generator) Generate(ctx context.Context, keywords []database.Keyword) (*database.ReportHistory, error) {
	var enabled []string
	for _, k := range keywords {
		if k.Enabled {
			enabled = append(enabled, k.Text)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoKeywords
	}

	reportID := fmt.Sprintf("report-%d", time.Now().UnixMilli())
	state := newRunState(reportID, enabled)
	g.state.Store(state)

	log.Printf("Generating report %s: %d keywords, concurrency %d", reportID, len(enabled), Concurrency)

	results := runPool(ctx, enabled, Concurrency, func(ctx context.Context, index int, keyword string) searchResult {
		return g.searchWithRetry(ctx, index, keyword, state)
	})

	if ctx.Err() != nil {
		g.state.Store(nil)
		return nil, ctx.Err()
	}

	var cards []database.Card
	totalCost := 0.0
	for _, r := range results {
		if !r.Success {
			continue
		}
		cards = append(cards, r.Cards...)
		totalCost += r.Cost
	}

	entry := database.ReportHistory{
		ID:                 reportID,
		GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
		Keywords:           enabled,
		TotalCards:         len(cards),
		ModelUsed:          openrouter.EnsureOnline(g.model),
		CostSpent:          totalCost,
		Categories:         uniqueCategories(cards),
		AvgRating:          averageRating(cards),
		RatingDistribution: ratingHistogram(cards),
	}

	if g.history != nil {
		if err := g.history.AddReportHistory(entry); err != nil {
			return nil, fmt.Errorf("recording report history: %w", err)
		}
	}
	return &entry, nil
}

// uniqueCategories preserves first-appearance order.
func uniqueCategories(cards []database.Card) []string {
	seen := make(map[string]bool)
	var categories []string
	for _, c := range cards {
		if c.Category == "" || seen[c.Category] {
			continue
		}
		seen[c.Category] = true
		categories = append(categories, c.Category)
	}
	return categories
}

func averageRating(cards []database.Card) float64 {
	if len(cards) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range cards {
		sum += c.Rating
	}
	return sum / float64(len(cards))
}

// ratingHistogram buckets ratings into integer bins 1 through 10 by
// rounding half away from zero. Only non-empty bins appear.
func ratingHistogram(cards []database.Card) map[int]int {
	histogram := make(map[int]int)
	for _, c := range cards {
		bin := int(math.Round(c.Rating))
		if bin < 1 {
			bin = 1
		}
		if bin > 10 {
			bin = 10
		}
		histogram[bin]++
	}
	return histogram
}
