package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		winner_color INTEGER
	);

	CREATE TABLE IF NOT EXISTS round_players (
		round_id TEXT NOT NULL REFERENCES rounds(id),
		color INTEGER NOT NULL,
		client_id TEXT NOT NULL,
		placement INTEGER NOT NULL,
		PRIMARY KEY (round_id, color)
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_ended ON rounds(ended_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// InsertRounds stores a batch of finished rounds in one transaction.
func (db *DB) InsertRounds(results []RoundResult) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		var winner sql.NullInt64
		if r.Winner != nil {
			winner = sql.NullInt64{Int64: int64(*r.Winner), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO rounds (id, started_at, ended_at, duration, winner_color) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.StartedAt.Format(time.RFC3339Nano), r.EndedAt.Format(time.RFC3339Nano), r.Duration, winner); err != nil {
			return fmt.Errorf("insert round %s: %w", r.ID, err)
		}
		for _, p := range r.Players {
			if _, err := tx.Exec(`INSERT INTO round_players (round_id, color, client_id, placement) VALUES (?, ?, ?, ?)`,
				r.ID, int(p.Color), strconv.FormatUint(p.ClientID, 10), p.Placement); err != nil {
				return fmt.Errorf("insert round player: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RecentRounds returns the latest finished rounds, newest first.
func (db *DB) RecentRounds(limit int) ([]RoundResult, error) {
	rows, err := db.conn.Query(`
		SELECT id, started_at, ended_at, duration, winner_color FROM rounds
		ORDER BY ended_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RoundResult
	for rows.Next() {
		var (
			r              RoundResult
			started, ended string
			winner         sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.Duration, &winner); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		if winner.Valid {
			c := PlayerColor(winner.Int64)
			r.Winner = &c
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		players, err := db.roundPlayers(result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Players = players
	}
	return result, nil
}

func (db *DB) roundPlayers(roundID string) ([]RoundPlayer, error) {
	rows, err := db.conn.Query(`
		SELECT color, client_id, placement FROM round_players
		WHERE round_id = ? ORDER BY placement
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoundPlayer
	for rows.Next() {
		var (
			p        RoundPlayer
			color    int
			clientID string
		)
		if err := rows.Scan(&color, &clientID, &p.Placement); err != nil {
			return nil, err
		}
		p.Color = PlayerColor(color)
		p.ClientID, _ = strconv.ParseUint(clientID, 10, 64)
		out = append(out, p)
	}
	return out, rows.Err()
}
