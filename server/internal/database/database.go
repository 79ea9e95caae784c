// Package database persists users and their merged per-day aggregates in
// SQLite. Aggregates are stored as one JSON document per (user, day,
// source) row so merges can rewrite a user's state in a single
// transaction.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tokgraph/tokgraph/internal/merge"
	"github.com/tokgraph/tokgraph/internal/model"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// User represents a user account
type User struct {
	ID         string
	Name       string
	APIKeyHash string
	CreatedAt  time.Time
}

// Open opens a SQLite database connection
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors under concurrent load
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// Migrate creates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		api_key_hash TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS day_sources (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		source TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, date, source),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_day_sources_user ON day_sources(user_id);
	`

	_, err := db.Exec(schema)
	return err
}

// CreateUser creates a new user
func (db *DB) CreateUser(user *User) error {
	_, err := db.Exec(
		`INSERT INTO users (id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.APIKeyHash, user.CreatedAt,
	)
	return err
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(id string) (*User, error) {
	user := &User{}
	err := db.QueryRow(
		`SELECT id, name, api_key_hash, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Name, &user.APIKeyHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LoadAggregate reads a user's full merged state.
func (db *DB) LoadAggregate(userID string) (merge.Aggregate, error) {
	rows, err := db.Query(
		`SELECT date, source, data FROM day_sources WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agg := make(merge.Aggregate)
	for rows.Next() {
		var date, source, data string
		if err := rows.Scan(&date, &source, &data); err != nil {
			return nil, err
		}
		var sb model.SourceBreakdown
		if err := json.Unmarshal([]byte(data), &sb); err != nil {
			return nil, fmt.Errorf("corrupt aggregate row %s/%s: %w", date, source, err)
		}
		if agg[date] == nil {
			agg[date] = make(map[string]*model.SourceBreakdown)
		}
		agg[date][source] = &sb
	}
	return agg, rows.Err()
}

// SaveAggregate replaces a user's merged state in one transaction.
func (db *DB) SaveAggregate(userID string, agg merge.Aggregate) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM day_sources WHERE user_id = ?`, userID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO day_sources (user_id, date, source, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for date, sources := range agg {
		for source, sb := range sources {
			data, err := json.Marshal(sb)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(userID, date, source, string(data), now); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
