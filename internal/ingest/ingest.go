// Package ingest pulls RSS/Atom feed entries into the card store, as a
// zero-cost complement to model-driven report generation.
package ingest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsforge/newsforge/internal/config"
	"github.com/newsforge/newsforge/internal/database"
)

const (
	maxPerFeed    = 20
	maxSummaryLen = 500
)

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
	Failed   int
}

// Importer converts feed entries into active cards. Imported cards carry
// the feed name as their keyword and rating 0, so they sort below rated
// report cards but share the same lifecycle.
type Importer struct {
	db    *database.DB
	feeds []config.Feed
}

// NewImporter creates an Importer for the configured feeds.
func NewImporter(db *database.DB, feeds []config.Feed) *Importer {
	return &Importer{db: db, feeds: feeds}
}

// Run parses every feed and stores entries published within daysBack as
// cards. Entries whose URL is already in the store are skipped.
func (imp *Importer) Run(daysBack int) *Result {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	reportID := fmt.Sprintf("import-%d", time.Now().UnixMilli())
	result := &Result{}

	parser := gofeed.NewParser()
	for _, fc := range imp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feed, err := parser.ParseURL(fc.URL)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			result.Failed++
			continue
		}

		imported := 0
		for _, item := range feed.Items {
			if imported >= maxPerFeed {
				break
			}
			card := imp.cardFromItem(item, reportID, name, cutoff)
			if card == nil {
				continue
			}

			exists, err := imp.db.HasCardWithURL(*card.URL)
			if err != nil {
				log.Printf("Dedup lookup failed for %s: %v", *card.URL, err)
				continue
			}
			if exists {
				result.Skipped++
				continue
			}

			if err := imp.db.AddCards([]database.Card{*card}); err != nil {
				log.Printf("Failed to store card %q: %v", card.Title, err)
				result.Failed++
				continue
			}
			imported++
			result.Imported++
		}
		log.Printf("Imported %d entries from %s (within %d days)", imported, name, daysBack)
	}

	return result
}

// cardFromItem builds a card from one feed item, or nil when the item
// lacks a usable URL or title, or falls outside the window.
func (imp *Importer) cardFromItem(item *gofeed.Item, reportID, source string, cutoff time.Time) *database.Card {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if itemURL == "" || title == "" {
		return nil
	}

	published := publishedDate(item)
	if !withinWindow(published, cutoff) {
		return nil
	}

	summary := item.Content
	if summary == "" {
		summary = item.Description
	}
	summary = truncate(stripHTML(summary), maxSummaryLen)

	card := database.Card{
		ID:          importCardID(reportID, title),
		ReportID:    reportID,
		Keyword:     source,
		Category:    "Uncategorized",
		Title:       title,
		Rating:      0,
		Summary:     summary,
		Source:      &source,
		URL:         &itemURL,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Status:      database.CardActive,
	}
	if published != "" {
		card.Date = &published
	}
	return &card
}

func publishedDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Format("2006-01-02")
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.Format("2006-01-02")
	}
	return ""
}

func withinWindow(published string, cutoff time.Time) bool {
	if published == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", published)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

func importCardID(reportID, title string) string {
	slug := strings.ToLower(title)
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 40 {
		s = s[:40]
	}

	buf := make([]byte, 4)
	rand.Read(buf)
	return fmt.Sprintf("%s-%s-%s", reportID, s, hex.EncodeToString(buf))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	if host == "" {
		return feedURL
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
