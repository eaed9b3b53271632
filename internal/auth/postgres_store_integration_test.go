//go:build postgres

package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestPostgresSessionStoreTimeout(t *testing.T) {
	store, cleanup := openPostgresSessionStoreForTest(t, WithTimeout(50*time.Millisecond))
	defer cleanup()

	ctx := context.Background()
	if _, err := store.pool.Exec(ctx, `CREATE OR REPLACE FUNCTION slow_auth_sessions_trigger() RETURNS trigger AS $$ BEGIN PERFORM pg_sleep(0.2); RETURN NEW; END; $$ LANGUAGE plpgsql;`); err != nil {
		t.Fatalf("failed to create slow trigger function: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `DROP TRIGGER IF EXISTS slow_auth_sessions_trigger ON auth_sessions`); err != nil {
		t.Fatalf("failed to drop existing trigger: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `CREATE TRIGGER slow_auth_sessions_trigger BEFORE INSERT ON auth_sessions FOR EACH ROW EXECUTE FUNCTION slow_auth_sessions_trigger()`); err != nil {
		t.Fatalf("failed to create slow trigger: %v", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = store.pool.Exec(cleanupCtx, `DROP TRIGGER IF EXISTS slow_auth_sessions_trigger ON auth_sessions`)
		_, _ = store.pool.Exec(cleanupCtx, `DROP FUNCTION IF EXISTS slow_auth_sessions_trigger()`)
	}()

	now := time.Now()
	err := store.Save(ctx, "timeout-token", "admin", now.Add(time.Hour), now.Add(time.Hour))
	if err == nil {
		t.Fatal("expected timeout error from slow trigger")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded; got %v", err)
	}
}

func TestPostgresSessionStoreSavesHashedTokens(t *testing.T) {
	store, cleanup := openPostgresSessionStoreForTest(t)
	defer cleanup()

	ctx := context.Background()
	token := "raw-session-token"
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Microsecond)

	if err := store.Save(ctx, token, "admin", expiresAt, expiresAt); err != nil {
		t.Fatalf("save session: %v", err)
	}

	hashedToken, err := hashSessionToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}

	var count int
	if err := store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM auth_sessions WHERE token = $1`, token).Scan(&count); err != nil {
		t.Fatalf("count raw tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected raw token not to be persisted")
	}

	var storedSubject string
	if err := store.pool.QueryRow(ctx, `SELECT user_id FROM auth_sessions WHERE token = $1`, hashedToken).Scan(&storedSubject); err != nil {
		t.Fatalf("fetch stored session: %v", err)
	}
	if storedSubject != "admin" {
		t.Fatalf("expected admin, got %s", storedSubject)
	}

	record, ok, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !ok {
		t.Fatalf("expected session to be found")
	}
	if record.Token != token {
		t.Fatalf("expected record token to match input")
	}
	if !record.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected expiresAt %v, got %v", expiresAt, record.ExpiresAt)
	}
}

func TestPostgresSessionStoreDeleteAndPurge(t *testing.T) {
	store, cleanup := openPostgresSessionStoreForTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()
	if err := store.Save(ctx, "to-delete", "admin", now.Add(time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Save(ctx, "expired", "admin", now.Add(-time.Minute), now.Add(time.Hour)); err != nil {
		t.Fatalf("save expired session: %v", err)
	}

	if err := store.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := store.Get(ctx, "to-delete"); err != nil || ok {
		t.Fatalf("expected deleted session gone, ok=%v err=%v", ok, err)
	}

	if err := store.PurgeExpired(ctx, now); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok, err := store.Get(ctx, "expired"); err != nil || ok {
		t.Fatalf("expected expired session purged, ok=%v err=%v", ok, err)
	}
}

func openPostgresSessionStoreForTest(t *testing.T, opts ...PostgresSessionStoreOption) (*PostgresSessionStore, func()) {
	t.Helper()

	dsn := os.Getenv("MOVIES_API_TEST_POSTGRES_DSN")
	if strings.TrimSpace(dsn) == "" {
		t.Skip("MOVIES_API_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewPostgresSessionStore(ctx, dsn, opts...)
	if err != nil {
		t.Fatalf("open postgres session store: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `TRUNCATE TABLE auth_sessions`); err != nil {
		t.Fatalf("truncate auth_sessions: %v", err)
	}

	cleanup := func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = store.pool.Exec(cleanupCtx, `TRUNCATE TABLE auth_sessions`)
		_ = store.Close(context.Background())
	}
	return store, cleanup
}
