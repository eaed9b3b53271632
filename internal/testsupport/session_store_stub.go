package testsupport

import (
	"context"
	"sync"
	"time"

	"movies-api/internal/auth"
)

// SessionStoreStub is an in-memory auth.SessionStore implementation intended for tests.
// It allows seeding records with custom expirations, injecting failures, and
// inspecting stored tokens.
type SessionStoreStub struct {
	mu       sync.RWMutex
	sessions map[string]auth.SessionRecord
	err      error
}

// NewSessionStoreStub constructs a SessionStoreStub with empty state.
func NewSessionStoreStub() *SessionStoreStub {
	return &SessionStoreStub{sessions: make(map[string]auth.SessionRecord)}
}

// Fail makes every subsequent call return err. Passing nil restores normal behaviour.
func (s *SessionStoreStub) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Save records the session details for the provided token.
func (s *SessionStoreStub) Save(_ context.Context, token, subject string, expiresAt, absoluteExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sessions[token] = auth.SessionRecord{Token: token, Subject: subject, ExpiresAt: expiresAt.UTC(), AbsoluteExpiresAt: absoluteExpiresAt.UTC()}
	return nil
}

// Get retrieves the session record for the provided token.
func (s *SessionStoreStub) Get(_ context.Context, token string) (auth.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return auth.SessionRecord{}, false, s.err
	}
	record, ok := s.sessions[token]
	return record, ok, nil
}

// Delete removes the session token from the store.
func (s *SessionStoreStub) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.sessions, token)
	return nil
}

// PurgeExpired removes sessions that have passed their expiration.
func (s *SessionStoreStub) PurgeExpired(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for token, record := range s.sessions {
		if now.After(record.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// Seed inserts a session record with the provided values, overriding any existing entry.
func (s *SessionStoreStub) Seed(token, subject string, expiresAt time.Time) {
	s.mu.Lock()
	s.sessions[token] = auth.SessionRecord{Token: token, Subject: subject, ExpiresAt: expiresAt.UTC(), AbsoluteExpiresAt: expiresAt.UTC()}
	s.mu.Unlock()
}

// Record looks up a token and returns the stored SessionRecord when present.
func (s *SessionStoreStub) Record(token string) (auth.SessionRecord, bool) {
	s.mu.RLock()
	record, ok := s.sessions[token]
	s.mu.RUnlock()
	return record, ok
}

// Len reports how many sessions are stored.
func (s *SessionStoreStub) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping reports the injected failure, if any, for SessionManager health checks.
func (s *SessionStoreStub) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
