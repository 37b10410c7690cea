package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite store for settings and finished match results
type DB struct {
	conn *sql.DB
}

// OpenDB opens (and migrates) the sqlite database at path
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// the server is the only writer; one connection avoids SQLITE_BUSY
	conn.SetMaxOpenConns(1)
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS match_results (
			match_id    TEXT PRIMARY KEY,
			winner_id   TEXT NOT NULL,
			loser_id    TEXT NOT NULL,
			reason      TEXT NOT NULL,
			duration    REAL NOT NULL,
			score       TEXT NOT NULL,
			stats       TEXT NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetSetting returns a settings value, or "" when absent
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting stores a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveMatchResult persists a finished match. Inserting the same matchId twice
// is a no-op, which makes finalization idempotent at the storage layer too.
func (db *DB) SaveMatchResult(res *MatchResult) error {
	score, err := json.Marshal(res.Score)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	stats, err := json.Marshal(res.PlayerStats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = db.conn.Exec(
		`INSERT OR IGNORE INTO match_results
		 (match_id, winner_id, loser_id, reason, duration, score, stats, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.MatchID, res.WinnerID, res.LoserID, res.Reason, res.Duration,
		string(score), string(stats), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save match result: %w", err)
	}
	return nil
}

// HasMatchResult reports whether a result was persisted for the match
func (db *DB) HasMatchResult(matchID string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(1) FROM match_results WHERE match_id = ?`, matchID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
