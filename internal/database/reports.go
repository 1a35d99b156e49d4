package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// AddReportHistory records the outcome of one generation run. Called
// exactly once per completed run, also when zero cards were produced.
func (db *DB) AddReportHistory(entry ReportHistory) error {
	keywords, err := json.Marshal(entry.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	categories, err := json.Marshal(entry.Categories)
	if err != nil {
		return fmt.Errorf("encoding categories: %w", err)
	}
	distribution, err := json.Marshal(stringKeys(entry.RatingDistribution))
	if err != nil {
		return fmt.Errorf("encoding rating distribution: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO report_history (id, generated_at, keywords, total_cards, model_used, cost_spent, categories, avg_rating, rating_distribution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.GeneratedAt, string(keywords), entry.TotalCards,
		entry.ModelUsed, entry.CostSpent, string(categories),
		entry.AvgRating, string(distribution),
	)
	if err != nil {
		return fmt.Errorf("inserting report history: %w", err)
	}
	return nil
}

// GetAllReports returns report history entries, newest first.
func (db *DB) GetAllReports() ([]ReportHistory, error) {
	rows, err := db.conn.Query(
		`SELECT id, generated_at, keywords, total_cards, model_used, cost_spent, categories, avg_rating, rating_distribution
		FROM report_history ORDER BY generated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []ReportHistory
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// GetReport returns one report history entry by id, or nil when absent.
func (db *DB) GetReport(reportID string) (*ReportHistory, error) {
	rows, err := db.conn.Query(
		`SELECT id, generated_at, keywords, total_cards, model_used, cost_spent, categories, avg_rating, rating_distribution
		FROM report_history WHERE id = ?`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanReport(rows)
}

func scanReport(rows *sql.Rows) (*ReportHistory, error) {
	var r ReportHistory
	var keywords, categories, distribution sql.NullString
	if err := rows.Scan(&r.ID, &r.GeneratedAt, &keywords, &r.TotalCards,
		&r.ModelUsed, &r.CostSpent, &categories, &r.AvgRating, &distribution); err != nil {
		return nil, err
	}

	if keywords.Valid && keywords.String != "" {
		json.Unmarshal([]byte(keywords.String), &r.Keywords)
	}
	if categories.Valid && categories.String != "" {
		json.Unmarshal([]byte(categories.String), &r.Categories)
	}
	if distribution.Valid && distribution.String != "" {
		var byString map[string]int
		if json.Unmarshal([]byte(distribution.String), &byString) == nil {
			r.RatingDistribution = intKeys(byString)
		}
	}
	return &r, nil
}

func stringKeys(m map[int]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func intKeys(m map[string]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		if i, err := strconv.Atoi(k); err == nil {
			out[i] = v
		}
	}
	return out
}
