package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsforge/newsforge/internal/database"
)

func TestCardFromItem(t *testing.T) {
	imp := &Importer{}
	published := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	item := &gofeed.Item{
		Title:           "  Big Launch  ",
		Link:            "https://example.com/launch",
		Description:     "<p>Something &amp; something else</p>",
		PublishedParsed: &published,
	}

	card := imp.cardFromItem(item, "import-1", "Example", published.AddDate(0, 0, -7))
	if card == nil {
		t.Fatal("expected a card")
	}
	if card.Title != "Big Launch" {
		t.Errorf("expected trimmed title, got %q", card.Title)
	}
	if card.URL == nil || *card.URL != "https://example.com/launch" {
		t.Errorf("unexpected URL %v", card.URL)
	}
	if card.Summary != "Something & something else" {
		t.Errorf("expected stripped summary, got %q", card.Summary)
	}
	if card.Keyword != "Example" {
		t.Errorf("expected feed name as keyword, got %q", card.Keyword)
	}
	if card.Rating != 0 {
		t.Errorf("expected rating 0, got %v", card.Rating)
	}
	if card.Date == nil || *card.Date != "2026-08-20" {
		t.Errorf("unexpected date %v", card.Date)
	}
	if card.Status != database.CardActive {
		t.Errorf("expected active status, got %q", card.Status)
	}
}

func TestCardFromItemRejectsOldAndBroken(t *testing.T) {
	imp := &Importer{}
	cutoff := time.Now().AddDate(0, 0, -7)

	old := time.Now().AddDate(0, 0, -30)
	if card := imp.cardFromItem(&gofeed.Item{Title: "Old", Link: "https://x.test/a", PublishedParsed: &old}, "r", "S", cutoff); card != nil {
		t.Error("expected old item to be rejected")
	}
	if card := imp.cardFromItem(&gofeed.Item{Title: "No URL"}, "r", "S", cutoff); card != nil {
		t.Error("expected item without URL to be rejected")
	}
	if card := imp.cardFromItem(&gofeed.Item{Link: "https://x.test/b"}, "r", "S", cutoff); card != nil {
		t.Error("expected item without title to be rejected")
	}
	// Undated items get the benefit of the doubt.
	if card := imp.cardFromItem(&gofeed.Item{Title: "Undated", Link: "https://x.test/c"}, "r", "S", cutoff); card == nil {
		t.Error("expected undated item to be kept")
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Hello <b>world</b> &amp; beyond</p>")
	if got != "Hello world & beyond" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := truncate(long, maxSummaryLen)
	if len(got) > maxSummaryLen+len("…") {
		t.Errorf("truncated summary too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("expected ellipsis suffix")
	}
	if truncate("short", maxSummaryLen) != "short" {
		t.Error("short strings should pass through")
	}
}

func TestExtractSourceName(t *testing.T) {
	cases := map[string]string{
		"https://feeds.arstechnica.com/arstechnica/index": "Arstechnica",
		"https://www.example.com/rss":                     "Example",
		"https://hnrss.org/frontpage":                     "Hnrss",
	}
	for feedURL, want := range cases {
		if got := extractSourceName(feedURL); got != want {
			t.Errorf("extractSourceName(%q) = %q, want %q", feedURL, got, want)
		}
	}
}

func TestImportCardIDUnique(t *testing.T) {
	a := importCardID("import-1", "Same Title")
	b := importCardID("import-1", "Same Title")
	if a == b {
		t.Error("expected distinct ids for identical titles")
	}
	if !strings.HasPrefix(a, "import-1-same-title-") {
		t.Errorf("unexpected id shape %q", a)
	}
}
