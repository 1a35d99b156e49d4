package report

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/newsforge/newsforge/internal/database"
	"github.com/newsforge/newsforge/internal/extract"
	"github.com/newsforge/newsforge/internal/openrouter"
)

// searchResult is the settled outcome of one keyword task. Err is set
// only for wire-level failures that the retry wrapper may act on;
// content parse failures settle as Success=false with a nil Err.
type searchResult struct {
	Success         bool
	Cards           []database.Card
	Cost            float64
	TotalStories    int
	RejectedStories int
	Err             error
}

// search runs one keyword through the full pipeline: prompt, completion,
// story extraction, card building, and an immediate push to the card
// sink so results survive a later cancellation.
func (g *Generator) search(ctx context.Context, index int, keyword string, state *RunState) searchResult {
	state.markLoading(index)

	model := openrouter.EnsureOnline(g.model)
	params := openrouter.Normalize(g.params, model)
	prompt := g.instructions + "\n\n" + `"` + keyword + `"`

	payload, err := g.completer.Complete(ctx, model, prompt, params)
	if err != nil {
		return searchResult{Err: err}
	}

	cost := 0.0
	if g.pricer != nil {
		cost = g.pricer.Cost(model, payload.Usage)
	}
	content := payload.Choices[0].Message.Content

	stories, rejected, err := g.parseStories(content)
	if err != nil {
		// The model answered but the answer was unusable. Not retried:
		// a second identical prompt rarely fixes a format problem.
		state.fail(index, fmt.Sprintf("Could not parse stories: %v", err))
		return searchResult{}
	}

	cards := g.buildCards(state.ReportID, keyword, stories)
	if len(cards) > 0 && g.cards != nil {
		if err := g.cards.AddCards(cards); err != nil {
			log.Printf("Failed to store cards for %q: %v", keyword, err)
		}
	}

	state.complete(index, Stage1Result{
		Result:         content,
		Cost:           cost,
		SearchQuery:    `"` + keyword + `"`,
		ModelUsed:      model,
		Parameters:     params,
		StoriesFound:   len(stories),
		ResponseLength: len(content),
	}, len(cards))

	return searchResult{
		Success:         true,
		Cards:           cards,
		Cost:            cost,
		TotalStories:    len(stories),
		RejectedStories: rejected,
	}
}

// parseStories turns raw model output into story records, using either
// lenient JSON extraction or the configured text conversion rules.
func (g *Generator) parseStories(content string) ([]map[string]any, int, error) {
	if g.mode == "text" {
		rules := g.rules
		if rules == nil {
			rules = extract.DefaultRules()
		}
		return rules.Convert(content)
	}

	obj, err := extract.JSON(content)
	if err != nil {
		return nil, 0, err
	}
	raw, ok := obj["stories"].([]any)
	if !ok {
		return nil, 0, fmt.Errorf("response JSON has no stories array")
	}

	// An empty stories array is a valid zero-result answer, not a failure.
	var stories []map[string]any
	rejected := 0
	for _, item := range raw {
		story, ok := item.(map[string]any)
		if !ok {
			rejected++
			continue
		}
		stories = append(stories, story)
	}
	return stories, rejected, nil
}

// buildCards converts story records into persistable cards. Stories
// without a title are dropped; everything else gets defaults.
func (g *Generator) buildCards(reportID, keyword string, stories []map[string]any) []database.Card {
	now := time.Now().UTC().Format(time.RFC3339)
	var cards []database.Card
	for _, story := range stories {
		title := stringField(story, "title")
		if title == "" {
			continue
		}
		category := stringField(story, "category")
		if category == "" {
			category = "Uncategorized"
		}

		cards = append(cards, database.Card{
			ID:          cardID(reportID, keyword),
			ReportID:    reportID,
			Keyword:     keyword,
			Category:    category,
			Title:       title,
			Rating:      coerceRating(story["rating"]),
			Summary:     stringField(story, "summary"),
			Source:      optionalField(story, "source"),
			URL:         optionalField(story, "url"),
			Date:        optionalField(story, "date"),
			GeneratedAt: now,
			Status:      database.CardActive,
		})
	}
	return cards
}

// coerceRating accepts whatever numeric shape the model produced.
// Ratings are free-form model output; anything non-numeric becomes 0.
func coerceRating(v any) float64 {
	var rating float64
	switch n := v.(type) {
	case float64:
		rating = n
	case int:
		rating = float64(n)
	case string:
		fmt.Sscanf(strings.TrimSpace(n), "%f", &rating)
	}
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return 0
	}
	return rating
}

func stringField(story map[string]any, key string) string {
	if s, ok := story[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func optionalField(story map[string]any, key string) *string {
	if s := stringField(story, key); s != "" {
		return &s
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// cardID builds a unique card id: report id, a slug of the keyword, a
// millisecond stamp, and random bytes against same-millisecond
// collisions across concurrent workers.
func cardID(reportID, keyword string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(keyword), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}

	buf := make([]byte, 4)
	rand.Read(buf)
	return fmt.Sprintf("%s-%s-%d-%s", reportID, slug, time.Now().UnixMilli(), hex.EncodeToString(buf))
}
