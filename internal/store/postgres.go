package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// PostgresStore handles the user directory in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Directory = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store with a connection pool
// and makes sure the users table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_display_name ON users (display_name COLLATE "C");
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureUser inserts the user unless the id is already taken.
func (s *PostgresStore) EnsureUser(ctx context.Context, user *models.Identity) (bool, error) {
	start := time.Now()
	defer func() { metrics.PostgresLatency.Observe(time.Since(start).Seconds()) }()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, display_name, email, avatar_url, provider, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, user.ID, user.DisplayName, user.Email, user.AvatarURL, user.Provider, user.CreatedAt)
	if err != nil {
		return false, apperr.Transient("store: ensure user", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.Identity, error) {
	user := &models.Identity{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, email, avatar_url, provider, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.AvatarURL,
		&user.Provider,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("store: get user", "user "+id)
		}
		return nil, apperr.Transient("store: get user", err)
	}
	return user, nil
}

// SearchUsers runs the half-open display name range query. COLLATE "C"
// keeps the comparison byte-wise regardless of the database locale.
func (s *PostgresStore) SearchUsers(ctx context.Context, lo, hi string, limit int) ([]models.DirectoryEntry, error) {
	start := time.Now()
	defer func() { metrics.PostgresLatency.Observe(time.Since(start).Seconds()) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, avatar_url
		FROM users
		WHERE display_name COLLATE "C" >= $1 AND display_name COLLATE "C" < $2
		ORDER BY display_name COLLATE "C", id
		LIMIT NULLIF($3::bigint, 0)
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
