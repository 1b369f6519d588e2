package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// SQLiteStore handles the user directory in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Directory = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/mediaconnect.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/mediaconnect.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist. display_name keeps the
// default BINARY collation so range queries compare bytes.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_display_name ON users(display_name);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureUser inserts the user unless the id is already taken.
func (s *SQLiteStore) EnsureUser(ctx context.Context, user *models.Identity) (bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, display_name, email, avatar_url, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.DisplayName, user.Email, user.AvatarURL, user.Provider, user.CreatedAt)
	if err != nil {
		return false, apperr.Transient("store: ensure user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Transient("store: ensure user", err)
	}
	return n == 1, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.Identity, error) {
	user := &models.Identity{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, avatar_url, provider, created_at
		FROM users WHERE id = ?
	`, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.AvatarURL,
		&user.Provider,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("store: get user", "user "+id)
		}
		return nil, apperr.Transient("store: get user", err)
	}
	return user, nil
}

// SearchUsers runs the half-open display name range query.
func (s *SQLiteStore) SearchUsers(ctx context.Context, lo, hi string, limit int) ([]models.DirectoryEntry, error) {
	// SQLite treats a negative LIMIT as unbounded.
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, avatar_url
		FROM users
		WHERE display_name >= ? AND display_name < ?
		ORDER BY display_name, id
		LIMIT ?
	`, lo, hi, limit)
	if err != nil {
		return nil, apperr.Transient("store: search users", err)
	}
	defer rows.Close()

	entries := make([]models.DirectoryEntry, 0)
	for rows.Next() {
		var e models.DirectoryEntry
		if err := rows.Scan(&e.ID, &e.DisplayName, &e.AvatarURL); err != nil {
			return nil, apperr.Transient("store: search users", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("store: search users", err)
	}
	return entries, nil
}
