package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const authSessionsSchema = `
CREATE TABLE IF NOT EXISTS auth_sessions (
    token TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    absolute_expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresSessionStore persists sessions to a Postgres table, allowing multiple
// API replicas to share authentication state. Tokens are stored as SHA-256 digests.
type PostgresSessionStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// PostgresSessionStoreOption customises a PostgresSessionStore.
type PostgresSessionStoreOption func(*PostgresSessionStore)

// WithTimeout bounds every statement issued by the store.
func WithTimeout(timeout time.Duration) PostgresSessionStoreOption {
	return func(s *PostgresSessionStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewPostgresSessionStore opens a Postgres-backed session store using the provided DSN.
func NewPostgresSessionStore(ctx context.Context, dsn string, opts ...PostgresSessionStoreOption) (*PostgresSessionStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres session dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres session config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres session pool: %w", err)
	}
	store := &PostgresSessionStore{pool: pool}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// EnsureSchema creates the auth_sessions table when it does not exist.
func (s *PostgresSessionStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	if _, err := s.pool.Exec(ctx, authSessionsSchema); err != nil {
		return fmt.Errorf("create auth_sessions: %w", err)
	}
	return nil
}

// Close releases the Postgres connection pool resources.
func (s *PostgresSessionStore) Close(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Ping checks connectivity to the backing database.
func (s *PostgresSessionStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Save stores or updates the session token.
func (s *PostgresSessionStore) Save(ctx context.Context, token, subject string, expiresAt, absoluteExpiresAt time.Time) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	_, err = s.pool.Exec(ctx, `
INSERT INTO auth_sessions (token, user_id, expires_at, absolute_expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (token) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    expires_at = EXCLUDED.expires_at,
    absolute_expires_at = EXCLUDED.absolute_expires_at
`, hashed, subject, expiresAt.UTC(), absoluteExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get fetches the session details for the provided token.
func (s *PostgresSessionStore) Get(ctx context.Context, token string) (SessionRecord, bool, error) {
	if s.pool == nil {
		return SessionRecord{}, false, fmt.Errorf("postgres session pool not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
SELECT user_id, expires_at, absolute_expires_at
FROM auth_sessions
WHERE token = $1
`, hashed)
	record := SessionRecord{Token: token}
	if err := row.Scan(&record.Subject, &record.ExpiresAt, &record.AbsoluteExpiresAt); err != nil {
		if isNoRows(err) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, fmt.Errorf("load session: %w", err)
	}
	return record, true, nil
}

// Delete removes the session token.
func (s *PostgresSessionStore) Delete(ctx context.Context, token string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE token = $1`, hashed); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired sessions from the table.
func (s *PostgresSessionStore) PurgeExpired(ctx context.Context, now time.Time) error {
	if s.pool == nil {
		return fmt.Errorf("postgres session pool not configured")
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1 OR absolute_expires_at <= $1`, now.UTC())
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}
