package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"movies-api/internal/auth"
	"movies-api/internal/observability/metrics"
	"movies-api/internal/storage"
	"movies-api/internal/testsupport"
)

type testEnv struct {
	handler  *Handler
	router   http.Handler
	db       *testsupport.AdapterStub
	sessions *testsupport.SessionStoreStub
	metrics  *metrics.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testsupport.NewAdapterStub()
	sessions := testsupport.NewSessionStoreStub()
	creds, err := auth.DefaultCredentials()
	if err != nil {
		t.Fatalf("DefaultCredentials: %v", err)
	}
	guard, err := auth.NewGuard(creds, auth.NewSessionManager(time.Hour, auth.WithStore(sessions)))
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	handler := NewHandler(storage.NewMovieRepository(db), guard)
	handler.Metrics = metrics.New()

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/movies", handler.ListMovies)
	router.HandlerFunc(http.MethodPost, "/movies", handler.CreateMovie)
	router.HandlerFunc(http.MethodGet, "/movies/:"+MovieIDParam, handler.GetMovie)
	router.HandlerFunc(http.MethodDelete, "/movies/:"+MovieIDParam, handler.DeleteMovie)
	router.HandlerFunc(http.MethodPost, "/login", handler.Login)
	router.HandlerFunc(http.MethodGet, "/session", handler.Session)
	router.HandlerFunc(http.MethodDelete, "/session", handler.Session)
	router.HandlerFunc(http.MethodGet, "/healthz", handler.Health)

	return &testEnv{handler: handler, router: router, db: db, sessions: sessions, metrics: handler.Metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	switch v := body.(type) {
	case nil:
		payload = bytes.NewReader(nil)
	case string:
		payload = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range mutate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/login", map[string]string{"username": "admin", "password": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not found", name)
	return nil
}

func httptestRecorder(handler http.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(method, path, nil))
	return rec
}
