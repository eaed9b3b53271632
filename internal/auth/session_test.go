package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	manager := NewSessionManager(50 * time.Millisecond)
	token, expiresAt, err := manager.Create(ctx, "admin")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	subject, expires, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate")
	}
	if subject != "admin" {
		t.Fatalf("expected subject admin, got %s", subject)
	}
	if !expires.Equal(expiresAt) {
		t.Fatalf("expected expiry %v, got %v", expiresAt, expires)
	}

	if err := manager.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		if err != nil {
			t.Fatalf("Validate returned error for revoked token: %v", err)
		}
		t.Fatal("expected revoked token to be invalid")
	}
}

func TestSessionExpiration(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(10*time.Millisecond, WithStore(store), WithClock(clock.Now))
	token, _, err := manager.Create(ctx, "admin")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Advance(20 * time.Millisecond)
	if err := manager.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if _, ok, err := store.Get(ctx, token); err != nil {
		t.Fatalf("Get returned error: %v", err)
	} else if ok {
		t.Fatalf("expected expired session to be purged")
	}
	if _, _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		if err != nil {
			t.Fatalf("Validate returned error for expired token: %v", err)
		}
		t.Fatal("expected expired token to be invalid")
	}
}

func TestValidateDeletesExpiredToken(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Minute, WithStore(store), WithClock(clock.Now))
	token, _, err := manager.Create(ctx, "admin")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		t.Fatalf("expected expired token rejected, ok=%v err=%v", ok, err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session removed, %d remain", store.Len())
	}
}

func TestCreateRequiresSubject(t *testing.T) {
	manager := NewSessionManager(time.Minute)
	if _, _, err := manager.Create(context.Background(), ""); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
}

func TestValidateEmptyToken(t *testing.T) {
	manager := NewSessionManager(time.Minute)
	if _, _, ok, err := manager.Validate(context.Background(), ""); ok || err != nil {
		t.Fatalf("expected empty token rejected without error, ok=%v err=%v", ok, err)
	}
}

func TestWithTokenLength(t *testing.T) {
	manager := NewSessionManager(time.Minute, WithTokenLength(8))
	token, _, err := manager.Create(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(token) != 16 {
		t.Fatalf("expected 16 hex characters, got %d", len(token))
	}
}

func TestSessionPersistsAcrossManagers(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	first := NewSessionManager(time.Minute, WithStore(store))
	token, _, err := first.Create(ctx, "persistent-user")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	second := NewSessionManager(time.Minute, WithStore(store))
	subject, _, ok, err := second.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate after manager restart")
	}
	if subject != "persistent-user" {
		t.Fatalf("expected subject persistent-user, got %s", subject)
	}
}

func TestConcurrentValidationAcrossManagers(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	primary := NewSessionManager(time.Minute, WithStore(store))
	token, _, err := primary.Create(ctx, "user-xyz")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	const workers = 8
	wg := sync.WaitGroup{}
	wg.Add(workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			replica := NewSessionManager(time.Minute, WithStore(store))
			subject, _, ok, err := replica.Validate(ctx, token)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- fmt.Errorf("token rejected by replica")
				return
			}
			if subject != "user-xyz" {
				errs <- fmt.Errorf("unexpected subject %s", subject)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("replica validation error: %v", err)
	}
}

func TestValidateRefreshesIdleTimeout(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Hour, WithStore(store), WithIdleTimeout(50*time.Millisecond), WithClock(clock.Now))

	token, initialExpiry, err := manager.Create(ctx, "user-refresh")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Advance(10 * time.Millisecond)
	_, refreshed, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate")
	}
	if !refreshed.After(initialExpiry) {
		t.Fatalf("expected refreshed expiry after initial %v, got %v", initialExpiry, refreshed)
	}
	if record, _, _ := store.Get(ctx, token); !record.ExpiresAt.Equal(refreshed) {
		t.Fatalf("expected store expiry to refresh to %v, got %v", refreshed, record.ExpiresAt)
	}
}

func TestValidateHonorsAbsoluteTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(100*time.Millisecond, WithStore(store), WithIdleTimeout(80*time.Millisecond), WithClock(clock.Now))

	token, _, err := manager.Create(ctx, "user-absolute")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	record, ok, err := store.Get(ctx, token)
	if err != nil || !ok {
		t.Fatalf("expected session record, got ok=%v err=%v", ok, err)
	}
	absoluteExpiry := record.AbsoluteExpiresAt

	clock.Advance(70 * time.Millisecond)
	_, refreshed, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate before absolute expiry")
	}
	if !refreshed.Equal(absoluteExpiry) {
		t.Fatalf("expected refresh to use absolute expiry %v, got %v", absoluteExpiry, refreshed)
	}

	clock.Advance(40 * time.Millisecond)
	if _, _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		t.Fatalf("expected token past absolute ttl rejected, ok=%v err=%v", ok, err)
	}
}

type failingStore struct {
	MemorySessionStore
	err error
}

func (s *failingStore) Get(context.Context, string) (SessionRecord, bool, error) {
	return SessionRecord{}, false, s.err
}

func (s *failingStore) Ping(context.Context) error { return s.err }

func TestValidatePropagatesStoreError(t *testing.T) {
	boom := errors.New("store offline")
	manager := NewSessionManager(time.Minute, WithStore(&failingStore{err: boom}))
	if _, _, _, err := manager.Validate(context.Background(), "token"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if err := manager.Ping(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected ping error, got %v", err)
	}
}
