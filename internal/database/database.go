// Package database is the embedded SQLite store for accounts, refresh
// tokens and finished-game results.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("database: not found")

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = errors.New("database: duplicate")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT    NOT NULL UNIQUE,
	password_hash TEXT    NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token      TEXT    PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS game_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id     TEXT    NOT NULL,
	room_id     INTEGER NOT NULL,
	seed        INTEGER NOT NULL,
	settlement  TEXT    NOT NULL,
	finished_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// User is one registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// GameResult is one finished game's settlement, stored as JSON.
type GameResult struct {
	GameID     string
	RoomID     int
	Seed       int64
	Settlement string
}

// DB wraps the sql connection pool.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() error { return db.conn.Close() }

// CreateUser inserts a new account and returns it.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("%w: username %s", ErrDuplicate, username)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// GetUserByUsername looks up one account by name.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUser looks up one account by id.
func (db *DB) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user id %d", ErrNotFound, id)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// InsertRefreshToken stores an opaque refresh token for a user.
func (db *DB) InsertRefreshToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// LookupRefreshToken returns the owning user id for a live token.
// Expired tokens are treated as missing and deleted opportunistically.
func (db *DB) LookupRefreshToken(ctx context.Context, token string) (int64, error) {
	var userID int64
	var expiresAt time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM refresh_tokens WHERE token = ?`,
		token,
	).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup refresh token: %w", err)
	}
	if time.Now().After(expiresAt) {
		_ = db.DeleteRefreshToken(ctx, token)
		return 0, ErrNotFound
	}
	return userID, nil
}

// DeleteRefreshToken revokes one token.
func (db *DB) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// InsertGameResult stores one finished game's settlement.
func (db *DB) InsertGameResult(ctx context.Context, result GameResult) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO game_results (game_id, room_id, seed, settlement) VALUES (?, ?, ?, ?)`,
		result.GameID, result.RoomID, result.Seed, result.Settlement,
	)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

// ListGameResults returns the most recent finished games, newest first.
func (db *DB) ListGameResults(ctx context.Context, limit int) ([]GameResult, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT game_id, room_id, seed, settlement FROM game_results ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list game results: %w", err)
	}
	defer rows.Close()

	var results []GameResult
	for rows.Next() {
		var result GameResult
		if err := rows.Scan(&result.GameID, &result.RoomID, &result.Seed, &result.Settlement); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
