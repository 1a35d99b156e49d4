// Package database persists keywords, news cards, and report history in a
// local SQLite file.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	row := db.conn.QueryRow(`SELECT
		(SELECT COUNT(*) FROM cards WHERE status = 'active'),
		(SELECT COUNT(*) FROM cards WHERE status = 'archived'),
		(SELECT COUNT(*) FROM keywords),
		(SELECT COUNT(*) FROM keywords WHERE enabled = 1),
		(SELECT COUNT(*) FROM report_history),
		(SELECT COALESCE(SUM(cost_spent), 0) FROM report_history)`)
	if err := row.Scan(&s.ActiveCards, &s.ArchivedCards, &s.Keywords,
		&s.EnabledKeywords, &s.Reports, &s.TotalCostSpent); err != nil {
		return nil, err
	}
	return s, nil
}
