package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func activeCard(id string) Card {
	return Card{
		ID:          id,
		ReportID:    "report-1",
		Keyword:     "golang",
		Category:    "Technology",
		Title:       "Title " + id,
		Rating:      7,
		Summary:     "Summary.",
		Source:      ptr("Example"),
		URL:         ptr("https://example.com/" + id),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Status:      CardActive,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	db.Close()

	// Reopening must not re-run migrations destructively.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("path = %q, want %q", db.Path(), path)
	}
}

func TestKeywordLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertKeyword("  golang  ")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	// Duplicate text reports id 0, no error.
	dup, err := db.InsertKeyword("golang")
	if err != nil || dup != 0 {
		t.Errorf("duplicate insert: id=%d err=%v", dup, err)
	}
	// Blank text is a no-op.
	if blank, _ := db.InsertKeyword("   "); blank != 0 {
		t.Errorf("blank insert returned id %d", blank)
	}

	db.InsertKeyword("rust")

	all, err := db.GetAllKeywords()
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if len(all) != 2 || all[0].Text != "golang" {
		t.Errorf("unexpected keywords %v", all)
	}
	if !all[0].Enabled {
		t.Error("keywords default to enabled")
	}

	if err := db.ToggleKeyword(id); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	enabled, _ := db.GetEnabledKeywords()
	if len(enabled) != 1 || enabled[0].Text != "rust" {
		t.Errorf("unexpected enabled keywords %v", enabled)
	}

	k, _ := db.GetKeyword(id)
	if k == nil || k.Enabled {
		t.Errorf("expected disabled keyword, got %+v", k)
	}

	if err := db.DeleteKeyword(id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if k, _ := db.GetKeyword(id); k != nil {
		t.Error("expected nil after delete")
	}
}

func TestCardLifecycle(t *testing.T) {
	db := openTestDB(t)

	if err := db.AddCards([]Card{activeCard("c1"), activeCard("c2")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// Appending more cards for the same report must work.
	if err := db.AddCards([]Card{activeCard("c3")}); err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if err := db.AddCards(nil); err != nil {
		t.Errorf("empty add should be a no-op, got %v", err)
	}

	active, err := db.GetActiveCards()
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active cards, got %d", len(active))
	}

	archived, err := db.ArchiveCard("c2")
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if !archived {
		t.Error("expected first archive to report true")
	}

	// Archiving again is a no-op.
	again, err := db.ArchiveCard("c2")
	if err != nil {
		t.Fatalf("re-archive failed: %v", err)
	}
	if again {
		t.Error("expected second archive to report false")
	}
	if missing, _ := db.ArchiveCard("nope"); missing {
		t.Error("expected archive of unknown card to report false")
	}

	active, _ = db.GetActiveCards()
	if len(active) != 2 {
		t.Errorf("expected 2 active cards after archive, got %d", len(active))
	}

	archivedCards, _ := db.GetArchivedCards()
	if len(archivedCards) != 1 || archivedCards[0].ID != "c2" {
		t.Fatalf("unexpected archived cards %v", archivedCards)
	}
	if archivedCards[0].ArchivedAt == nil {
		t.Error("expected archived_at to be stamped")
	}

	card, _ := db.GetCard("c2")
	if card == nil || card.Status != CardArchived {
		t.Errorf("unexpected card %+v", card)
	}
	if none, _ := db.GetCard("nope"); none != nil {
		t.Error("expected nil for unknown card")
	}

	forReport, _ := db.GetCardsForReport("report-1")
	if len(forReport) != 3 {
		t.Errorf("expected all 3 cards for report, got %d", len(forReport))
	}

	has, _ := db.HasCardWithURL("https://example.com/c1")
	if !has {
		t.Error("expected URL hit")
	}
	has, _ = db.HasCardWithURL("https://example.com/other")
	if has {
		t.Error("expected URL miss")
	}
}

func TestCardStatusDefault(t *testing.T) {
	db := openTestDB(t)

	card := activeCard("c1")
	card.Status = ""
	if err := db.AddCards([]Card{card}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	got, _ := db.GetCard("c1")
	if got.Status != CardActive {
		t.Errorf("expected default active status, got %q", got.Status)
	}
}

func TestReportHistoryRoundTrip(t *testing.T) {
	db := openTestDB(t)

	entry := ReportHistory{
		ID:                 "report-1",
		GeneratedAt:        "2026-08-28T10:00:00Z",
		Keywords:           []string{"golang", "rust"},
		TotalCards:         5,
		ModelUsed:          "perplexity/sonar:online",
		CostSpent:          0.0456,
		Categories:         []string{"Technology", "Business"},
		AvgRating:          6.8,
		RatingDistribution: map[int]int{5: 2, 7: 2, 9: 1},
	}
	if err := db.AddReportHistory(entry); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	db.AddReportHistory(ReportHistory{ID: "report-2", GeneratedAt: "2026-08-29T10:00:00Z"})

	all, err := db.GetAllReports()
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "report-2" {
		t.Errorf("expected newest first, got %v", all)
	}

	got, err := db.GetReport("report-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected report")
	}
	if len(got.Keywords) != 2 || got.Keywords[1] != "rust" {
		t.Errorf("keywords = %v", got.Keywords)
	}
	if got.RatingDistribution[7] != 2 || got.RatingDistribution[9] != 1 {
		t.Errorf("distribution = %v", got.RatingDistribution)
	}
	if got.CostSpent != 0.0456 {
		t.Errorf("cost = %v", got.CostSpent)
	}

	if none, _ := db.GetReport("nope"); none != nil {
		t.Error("expected nil for unknown report")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	db.AddCards([]Card{activeCard("c1"), activeCard("c2")})
	db.ArchiveCard("c1")
	id, _ := db.InsertKeyword("golang")
	db.InsertKeyword("rust")
	db.ToggleKeyword(id)
	db.AddReportHistory(ReportHistory{ID: "r1", GeneratedAt: "2026-08-28T10:00:00Z", CostSpent: 0.25})
	db.AddReportHistory(ReportHistory{ID: "r2", GeneratedAt: "2026-08-29T10:00:00Z", CostSpent: 0.75})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ActiveCards != 1 || stats.ArchivedCards != 1 {
		t.Errorf("card counts = %d/%d", stats.ActiveCards, stats.ArchivedCards)
	}
	if stats.Keywords != 2 || stats.EnabledKeywords != 1 {
		t.Errorf("keyword counts = %d/%d", stats.Keywords, stats.EnabledKeywords)
	}
	if stats.Reports != 2 || stats.TotalCostSpent != 1.0 {
		t.Errorf("report stats = %d/$%v", stats.Reports, stats.TotalCostSpent)
	}
}
