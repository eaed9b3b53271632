package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnauthorized is returned when a request lacks a valid session.
var ErrUnauthorized = errors.New("unauthorized")

// Session describes an authenticated session.
type Session struct {
	Token     string    `json:"token"`
	Subject   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Guard checks credentials at login and gates protected operations on a
// valid session token.
type Guard struct {
	credentials *Credentials
	sessions    *SessionManager
}

// NewGuard wires the configured credential to the session manager.
func NewGuard(credentials *Credentials, sessions *SessionManager) (*Guard, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &Guard{credentials: credentials, sessions: sessions}, nil
}

// Login verifies the credential and issues a new session. A failed login
// leaves the session store untouched.
func (g *Guard) Login(ctx context.Context, username, password string) (Session, error) {
	if err := g.credentials.Verify(username, password); err != nil {
		return Session{}, err
	}
	token, expiresAt, err := g.sessions.Create(ctx, g.credentials.Username())
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return Session{Token: token, Subject: g.credentials.Username(), ExpiresAt: expiresAt}, nil
}

// RequireAuth resolves the token to a live session or returns ErrUnauthorized.
func (g *Guard) RequireAuth(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthorized
	}
	subject, expiresAt, ok, err := g.sessions.Validate(ctx, token)
	if err != nil {
		return Session{}, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return Session{}, ErrUnauthorized
	}
	return Session{Token: token, Subject: subject, ExpiresAt: expiresAt}, nil
}

// Logout revokes the token.
func (g *Guard) Logout(ctx context.Context, token string) error {
	if err := g.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Sessions exposes the underlying manager for health checks and the purger.
func (g *Guard) Sessions() *SessionManager {
	return g.sessions
}
