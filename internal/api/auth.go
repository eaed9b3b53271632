package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"movies-api/internal/auth"
	"movies-api/internal/observability/logging"
)

type contextKey string

const sessionContextKey contextKey = "authenticatedSession"

// ContextWithSession stores the resolved session in the provided context.
func ContextWithSession(ctx context.Context, session auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext retrieves the resolved session from context if present.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(auth.Session)
	return session, ok
}

// AuthenticateRequest validates the session token presented on the request.
// It returns auth.ErrUnauthorized when the token is missing, unknown, or expired.
func (h *Handler) AuthenticateRequest(r *http.Request) (auth.Session, error) {
	if session, ok := SessionFromContext(r.Context()); ok {
		return session, nil
	}
	if h.Guard == nil {
		return auth.Session{}, auth.ErrUnauthorized
	}
	return h.Guard.RequireAuth(r.Context(), ExtractToken(r))
}

// requireSession writes 401 or 500 and returns false when the request is not
// authenticated.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, err := h.AuthenticateRequest(r)
	if err == nil {
		return session, true
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return auth.Session{}, false
	}
	h.logger(r.Context()).Error("session lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, errInternal)
	return auth.Session{}, false
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionResponse struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login checks the submitted credential and issues a session. A malformed body
// is treated as a failed login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	if h.Guard == nil {
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	var req loginRequest
	if err := decodeJSONAllowUnknown(w, r, &req); err != nil {
		h.metrics().ObserveLogin("failure")
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
		return
	}

	session, err := h.Guard.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics().ObserveLogin("failure")
			h.logger(r.Context()).Warn("login rejected")
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
			return
		}
		h.metrics().ObserveLogin("error")
		h.logger(r.Context()).Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	h.metrics().ObserveLogin("success")
	ctx := logging.ContextWithSubject(r.Context(), session.Subject)
	h.logger(ctx).Info("session issued", "expires_at", session.ExpiresAt)
	h.setSessionCookie(w, r, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{Token: session.Token, ExpiresAt: session.ExpiresAt.UTC()})
}

// Session reports (GET) or revokes (DELETE) the presented session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		session, ok := h.requireSession(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Username: session.Subject, ExpiresAt: session.ExpiresAt.UTC()})
	case http.MethodDelete:
		token := ExtractToken(r)
		if token == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("missing session token"))
			return
		}
		if h.Guard == nil {
			writeError(w, http.StatusInternalServerError, errInternal)
			return
		}
		if err := h.Guard.Logout(r.Context(), token); err != nil {
			h.logger(r.Context()).Error("logout failed", "error", err)
			writeError(w, http.StatusInternalServerError, errInternal)
			return
		}
		h.metrics().ObserveSessionEvent("revoked")
		h.clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "GET, DELETE")
	}
}
