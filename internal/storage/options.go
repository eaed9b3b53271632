package storage

import (
	"strings"
	"time"
)

// Option adjusts the connection settings used by an Adapter.
type Option func(*Config)

// WithPoolLimits bounds the number of pooled connections.
func WithPoolLimits(maxConns, minConns int32) Option {
	return func(cfg *Config) {
		if maxConns > 0 {
			cfg.MaxConnections = maxConns
		}
		if minConns >= 0 {
			cfg.MinConnections = minConns
		}
	}
}

func WithPoolDurations(maxLifetime, maxIdle, healthInterval time.Duration) Option {
	return func(cfg *Config) {
		if maxLifetime > 0 {
			cfg.MaxConnLifetime = maxLifetime
		}
		if maxIdle > 0 {
			cfg.MaxConnIdleTime = maxIdle
		}
		if healthInterval > 0 {
			cfg.HealthCheckInterval = healthInterval
		}
	}
}

// WithAcquireTimeout configures how long a connection attempt may take before
// the adapter gives up.
func WithAcquireTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		if timeout > 0 {
			cfg.AcquireTimeout = timeout
		}
	}
}

// WithQueryTimeout bounds every statement issued through the adapter. The
// deadline is applied on top of the caller's context, never extending it.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		if timeout > 0 {
			cfg.QueryTimeout = timeout
		}
	}
}

func WithApplicationName(name string) Option {
	return func(cfg *Config) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.ApplicationName = trimmed
		}
	}
}
