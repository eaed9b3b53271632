package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "root", in: "/", want: "/"},
		{name: "empty", in: "", want: "/"},
		{name: "collection", in: "/movies", want: "/movies"},
		{name: "numeric id", in: "/movies/42", want: "/movies/:id"},
		{name: "trailing slash", in: "/movies/1234/", want: "/movies/:id"},
		{name: "non numeric segment kept", in: "/movies/abc", want: "/movies/abc"},
		{name: "long opaque segment", in: "/movies/abcdefghijklmnopqrstuvwxyz", want: "/movies/:id"},
		{name: "missing leading slash", in: "movies/9", want: "/movies/:id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizePath(tc.in); got != tc.want {
				t.Fatalf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func scrape(t *testing.T, recorder *Recorder) string {
	t.Helper()
	rr := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 200 {
		t.Fatalf("scrape returned %d: %s", rr.Code, rr.Body.String())
	}
	return rr.Body.String()
}

func TestObserveRequestAccumulates(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("get", "/movies/1", 200, 50*time.Millisecond)
	recorder.ObserveRequest("GET", "/movies/2", 200, 25*time.Millisecond)

	body := scrape(t, recorder)
	for _, expected := range []string{
		`movies_api_http_requests_total{method="GET",path="/movies/:id",status="200"} 2`,
		`movies_api_http_request_duration_seconds_count{method="GET",path="/movies/:id",status="200"} 2`,
		`movies_api_http_request_duration_seconds_bucket{method="GET",path="/movies/:id",status="200",le="0.05"} 2`,
	} {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected %q in output %q", expected, body)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	recorder := New()
	recorder.ObserveMovieOperation("create", "ok")
	recorder.ObserveMovieOperation("Create", " OK ")
	recorder.ObserveMovieOperation("delete", "error")
	recorder.ObserveLogin("success")
	recorder.ObserveLogin("failure")
	recorder.ObserveLogin("failure")
	recorder.ObserveSessionEvent("revoked")

	ops := recorder.MovieOperationCounts()
	if ops[OperationLabel{Operation: "create", Outcome: "ok"}] != 2 {
		t.Fatalf("expected two successful creates, got %+v", ops)
	}
	if ops[OperationLabel{Operation: "delete", Outcome: "error"}] != 1 {
		t.Fatalf("expected one failed delete, got %+v", ops)
	}
	logins := recorder.LoginCounts()
	if logins["failure"] != 2 || logins["success"] != 1 {
		t.Fatalf("unexpected login counts %+v", logins)
	}

	body := scrape(t, recorder)
	for _, expected := range []string{
		`movies_api_movie_operations_total{operation="create",outcome="ok"} 2`,
		`movies_api_login_attempts_total{result="failure"} 2`,
		`movies_api_session_events_total{event="revoked"} 1`,
	} {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected %q in output %q", expected, body)
		}
	}
}

func TestSetComponentHealth(t *testing.T) {
	recorder := New()
	recorder.SetComponentHealth("database", "ok")
	recorder.SetComponentHealth("sessions", "degraded")
	recorder.SetComponentHealth("ratelimit", "disabled")

	body := scrape(t, recorder)
	for _, expected := range []string{
		`movies_api_component_health{component="database",status="ok"} 1`,
		`movies_api_component_health{component="sessions",status="degraded"} -1`,
		`movies_api_component_health{component="ratelimit",status="disabled"} 0`,
	} {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected %q in output %q", expected, body)
		}
	}
}

func TestSetComponentHealthReplacesPreviousStatus(t *testing.T) {
	recorder := New()
	recorder.SetComponentHealth("database", "degraded")
	recorder.SetComponentHealth("database", "ok")

	body := scrape(t, recorder)
	if strings.Contains(body, `component="database",status="degraded"`) {
		t.Fatalf("expected stale status to be dropped, got %q", body)
	}
	if !strings.Contains(body, `movies_api_component_health{component="database",status="ok"} 1`) {
		t.Fatalf("expected current status in output %q", body)
	}
}

func TestResetClearsCounters(t *testing.T) {
	recorder := New()
	recorder.ObserveLogin("success")
	recorder.ObserveMovieOperation("list", "ok")
	recorder.Reset()
	if len(recorder.LoginCounts()) != 0 || len(recorder.MovieOperationCounts()) != 0 {
		t.Fatal("expected counters to be cleared")
	}
}

func TestRecorderConcurrentWrites(t *testing.T) {
	recorder := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.ObserveRequest("GET", "/movies", 200, time.Millisecond)
			recorder.ObserveMovieOperation("list", "ok")
		}()
	}
	wg.Wait()
	if got := recorder.MovieOperationCounts()[OperationLabel{Operation: "list", Outcome: "ok"}]; got != 16 {
		t.Fatalf("expected 16 list operations, got %d", got)
	}
}

func TestHandlerWritesExposition(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("GET", "/movies", 204, time.Millisecond)

	rr := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain; version=0.0.4") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collector output, got %q", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `path="/movies",status="204"`) {
		t.Fatalf("expected request metric in body, got %q", rr.Body.String())
	}
}
