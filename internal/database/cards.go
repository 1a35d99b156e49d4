package database

import (
	"database/sql"
	"fmt"
	"time"
)

// AddCards inserts cards in one transaction. Append-only: cards arrive
// incrementally from concurrently settling keyword tasks, so the insert
// must be safe to call multiple times per run.
func (db *DB) AddCards(cards []Card) error {
	if len(cards) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin card insert: %w", err)
	}

	for _, c := range cards {
		status := c.Status
		if status == "" {
			status = CardActive
		}
		_, err := tx.Exec(
			`INSERT INTO cards (id, report_id, keyword, category, title, rating, summary, source, url, date, generated_at, archived_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ReportID, c.Keyword, c.Category, c.Title, c.Rating,
			c.Summary, c.Source, c.URL, c.Date, c.GeneratedAt, c.ArchivedAt, status,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting card %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetActiveCards returns active cards, newest first, highest rated first
// within a report.
func (db *DB) GetActiveCards() ([]Card, error) {
	return db.queryCards(
		`SELECT id, report_id, keyword, category, title, rating, summary, source, url, date, generated_at, archived_at, status
		FROM cards WHERE status = 'active' ORDER BY generated_at DESC, rating DESC`)
}

// GetArchivedCards returns archived cards, most recently archived first.
func (db *DB) GetArchivedCards() ([]Card, error) {
	return db.queryCards(
		`SELECT id, report_id, keyword, category, title, rating, summary, source, url, date, generated_at, archived_at, status
		FROM cards WHERE status = 'archived' ORDER BY archived_at DESC`)
}

// GetCardsForReport returns all cards stamped with a report id, highest
// rated first.
func (db *DB) GetCardsForReport(reportID string) ([]Card, error) {
	return db.queryCards(
		`SELECT id, report_id, keyword, category, title, rating, summary, source, url, date, generated_at, archived_at, status
		FROM cards WHERE report_id = ? ORDER BY rating DESC`, reportID)
}

// GetCard returns a single card by id, or nil when absent.
func (db *DB) GetCard(cardID string) (*Card, error) {
	row := db.conn.QueryRow(
		`SELECT id, report_id, keyword, category, title, rating, summary, source, url, date, generated_at, archived_at, status
		FROM cards WHERE id = ?`, cardID)

	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ArchiveCard moves a card from active to archived, stamping archived_at.
// The status guard makes the transition happen exactly once; returns false
// when the card was already archived or does not exist.
func (db *DB) ArchiveCard(cardID string) (bool, error) {
	result, err := db.conn.Exec(
		"UPDATE cards SET status = 'archived', archived_at = ? WHERE id = ? AND status = 'active'",
		time.Now().UTC().Format(time.RFC3339), cardID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// HasCardWithURL reports whether any card carries the given URL. Used by
// the feed importer to avoid duplicate cards across import runs.
func (db *DB) HasCardWithURL(url string) (bool, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM cards WHERE url = ?", url).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) queryCards(query string, args ...any) ([]Card, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCards(rows)
}

func scanCards(rows *sql.Rows) ([]Card, error) {
	var cards []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.ReportID, &c.Keyword, &c.Category, &c.Title,
			&c.Rating, &c.Summary, &c.Source, &c.URL, &c.Date,
			&c.GeneratedAt, &c.ArchivedAt, &c.Status); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanCard(row *sql.Row) (*Card, error) {
	var c Card
	if err := row.Scan(&c.ID, &c.ReportID, &c.Keyword, &c.Category, &c.Title,
		&c.Rating, &c.Summary, &c.Source, &c.URL, &c.Date,
		&c.GeneratedAt, &c.ArchivedAt, &c.Status); err != nil {
		return nil, err
	}
	return &c, nil
}
