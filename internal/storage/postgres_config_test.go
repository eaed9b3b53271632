package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg := newConfig(" postgres://localhost/movies ",
		WithPoolLimits(10, 2),
		WithPoolDurations(time.Hour, time.Minute, 30*time.Second),
		WithAcquireTimeout(5*time.Second),
		WithQueryTimeout(2*time.Second),
		WithApplicationName(" movies-api "),
		nil,
	)
	if cfg.DSN != "postgres://localhost/movies" {
		t.Fatalf("unexpected dsn %q", cfg.DSN)
	}
	if cfg.MaxConnections != 10 || cfg.MinConnections != 2 {
		t.Fatalf("unexpected pool limits %d/%d", cfg.MaxConnections, cfg.MinConnections)
	}
	if cfg.MaxConnLifetime != time.Hour || cfg.MaxConnIdleTime != time.Minute || cfg.HealthCheckInterval != 30*time.Second {
		t.Fatalf("unexpected pool durations %+v", cfg)
	}
	if cfg.AcquireTimeout != 5*time.Second || cfg.QueryTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
	if cfg.ApplicationName != "movies-api" {
		t.Fatalf("unexpected application name %q", cfg.ApplicationName)
	}
}

func TestNewConfigIgnoresNonPositiveValues(t *testing.T) {
	cfg := newConfig("dsn", WithPoolLimits(0, -1), WithQueryTimeout(0), WithApplicationName("  "))
	if cfg.MaxConnections != 0 || cfg.MinConnections != 0 || cfg.QueryTimeout != 0 || cfg.ApplicationName != "" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestQueryContextAppliesTimeout(t *testing.T) {
	cfg := Config{QueryTimeout: time.Minute}
	ctx, cancel := cfg.queryContext(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline")
	}
	if time.Until(deadline) > time.Minute {
		t.Fatalf("deadline too far in the future: %v", deadline)
	}

	ctx, cancel = Config{}.queryContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline without a query timeout")
	}
}

func TestDSNWithApplicationName(t *testing.T) {
	cases := []struct {
		name string
		dsn  string
		app  string
		want string
	}{
		{name: "url", dsn: "postgres://u:p@localhost:5432/movies?sslmode=disable", app: "movies-api", want: "application_name=movies-api"},
		{name: "keyword", dsn: "host=localhost dbname=movies", app: "movies-api", want: "host=localhost dbname=movies application_name='movies-api'"},
		{name: "empty name", dsn: "host=localhost", app: "", want: "host=localhost"},
		{name: "already set", dsn: "host=localhost application_name=x", app: "movies-api", want: "host=localhost application_name=x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := dsnWithApplicationName(tc.dsn, tc.app)
			if !strings.Contains(got, tc.want) {
				t.Fatalf("expected %q to contain %q", got, tc.want)
			}
		})
	}
}
