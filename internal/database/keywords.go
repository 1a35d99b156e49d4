package database

import (
	"database/sql"
	"strings"
)

// InsertKeyword adds a keyword, enabled by default. Returns the ID on
// success, 0 if the text already exists.
func (db *DB) InsertKeyword(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	result, err := db.conn.Exec("INSERT INTO keywords (text) VALUES (?)", text)
	if err != nil {
		// Duplicate text constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetAllKeywords returns every keyword in creation order.
func (db *DB) GetAllKeywords() ([]Keyword, error) {
	rows, err := db.conn.Query(
		"SELECT id, text, enabled, created_at FROM keywords ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKeywords(rows)
}

// GetEnabledKeywords returns only the keywords that participate in a run.
func (db *DB) GetEnabledKeywords() ([]Keyword, error) {
	rows, err := db.conn.Query(
		"SELECT id, text, enabled, created_at FROM keywords WHERE enabled = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKeywords(rows)
}

// GetKeyword returns a single keyword by ID, or nil when absent.
func (db *DB) GetKeyword(id int64) (*Keyword, error) {
	row := db.conn.QueryRow(
		"SELECT id, text, enabled, created_at FROM keywords WHERE id = ?", id)

	var k Keyword
	var enabled int
	err := row.Scan(&k.ID, &k.Text, &enabled, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	k.Enabled = enabled != 0
	return &k, nil
}

// ToggleKeyword flips a keyword's enabled state.
func (db *DB) ToggleKeyword(id int64) error {
	_, err := db.conn.Exec(
		"UPDATE keywords SET enabled = 1 - enabled WHERE id = ?", id)
	return err
}

// DeleteKeyword removes a keyword.
func (db *DB) DeleteKeyword(id int64) error {
	_, err := db.conn.Exec("DELETE FROM keywords WHERE id = ?", id)
	return err
}

func scanKeywords(rows *sql.Rows) ([]Keyword, error) {
	var keywords []Keyword
	for rows.Next() {
		var k Keyword
		var enabled int
		if err := rows.Scan(&k.ID, &k.Text, &enabled, &k.CreatedAt); err != nil {
			return nil, err
		}
		k.Enabled = enabled != 0
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}
