package storage

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Config describes how an Adapter opens and sizes its connection pool.
type Config struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	AcquireTimeout      time.Duration
	QueryTimeout        time.Duration
	ApplicationName     string
}

func newConfig(dsn string, opts ...Option) Config {
	cfg := Config{DSN: strings.TrimSpace(dsn)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// queryContext derives a context bounded by the configured query timeout.
func (c Config) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.QueryTimeout)
}

// dsnWithApplicationName appends application_name to either URL or
// keyword/value style connection strings.
func dsnWithApplicationName(dsn, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		query := parsed.Query()
		if query.Get("application_name") == "" {
			query.Set("application_name", name)
		}
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}
	if strings.Contains(dsn, "application_name=") {
		return dsn
	}
	return strings.TrimSpace(dsn + " application_name='" + strings.ReplaceAll(name, "'", `\'`) + "'")
}
