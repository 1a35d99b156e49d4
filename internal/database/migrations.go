package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS keywords (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT UNIQUE NOT NULL,
    enabled INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    report_id TEXT NOT NULL,
    keyword TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'Uncategorized',
    title TEXT NOT NULL,
    rating REAL NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    source TEXT,
    url TEXT,
    date TEXT,
    generated_at TEXT NOT NULL,
    archived_at TEXT,
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'archived'))
);

CREATE TABLE IF NOT EXISTS report_history (
    id TEXT PRIMARY KEY,
    generated_at TEXT NOT NULL,
    keywords TEXT NOT NULL,
    total_cards INTEGER DEFAULT 0,
    model_used TEXT NOT NULL,
    cost_spent REAL DEFAULT 0,
    categories TEXT,
    avg_rating REAL DEFAULT 0,
    rating_distribution TEXT
);

CREATE INDEX IF NOT EXISTS idx_cards_status ON cards(status);
CREATE INDEX IF NOT EXISTS idx_cards_report ON cards(report_id);
CREATE INDEX IF NOT EXISTS idx_cards_url ON cards(url);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
