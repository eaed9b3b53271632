package server

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds overall request throughput and login attempts per
// client IP. A zero GlobalRPS or LoginLimit disables the respective limit.
// When RedisAddr is set, login attempts are counted in Redis so several
// instances share one budget.
type RateLimitConfig struct {
	GlobalRPS     float64
	GlobalBurst   int
	LoginLimit    int
	LoginWindow   time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTimeout  time.Duration
}

type rateLimiter struct {
	global      *rate.Limiter
	loginLimit  int
	loginWindow time.Duration
	now         func() time.Time

	loginMu      sync.Mutex
	loginClients map[string]*loginClient
	store        loginStore
}

type loginClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type loginStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}

func newRateLimiter(cfg RateLimitConfig) (*rateLimiter, error) {
	rl := &rateLimiter{
		loginLimit:   cfg.LoginLimit,
		loginWindow:  cfg.LoginWindow,
		now:          time.Now,
		loginClients: make(map[string]*loginClient),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(math.Ceil(cfg.GlobalRPS))
		}
		rl.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	if rl.loginLimit < 0 {
		rl.loginLimit = 0
	}
	if rl.loginWindow <= 0 {
		rl.loginWindow = time.Minute
	}
	if cfg.RedisAddr != "" && rl.loginLimit > 0 {
		store, err := newRedisLoginStore(redisLoginStoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Timeout:  cfg.RedisTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configure login throttle store: %w", err)
		}
		rl.store = store
	}
	return rl, nil
}

// AllowRequest reports whether the global limiter admits another request.
func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

// AllowLogin consumes one login attempt for key and, when throttled, returns
// how long the caller should wait before retrying.
func (r *rateLimiter) AllowLogin(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.loginLimit <= 0 {
		return true, 0, nil
	}
	if key == "" {
		key = "unknown"
	}
	if r.store != nil {
		return r.store.Allow(ctx, "movies:login:"+key, r.loginLimit, r.loginWindow)
	}

	now := r.now()
	r.loginMu.Lock()
	client, exists := r.loginClients[key]
	if !exists {
		every := rate.Every(r.loginWindow / time.Duration(r.loginLimit))
		client = &loginClient{limiter: rate.NewLimiter(every, r.loginLimit)}
		r.loginClients[key] = client
	}
	client.lastSeen = now
	r.cleanupLocked(now)
	r.loginMu.Unlock()

	reservation := client.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, r.loginWindow, nil
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return true, 0, nil
	}
	reservation.CancelAt(now)
	return false, delay, nil
}

// Ping checks the shared login store. It is a no-op for in-process limits.
func (r *rateLimiter) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Ping(ctx)
}

// Close releases the shared login store connection pool.
func (r *rateLimiter) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func (r *rateLimiter) shared() bool {
	return r != nil && r.store != nil
}

func (r *rateLimiter) cleanupLocked(now time.Time) {
	if len(r.loginClients) == 0 {
		return
	}
	cutoff := now.Add(-2 * r.loginWindow)
	for key, client := range r.loginClients {
		if client.lastSeen.Before(cutoff) {
			delete(r.loginClients, key)
		}
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
