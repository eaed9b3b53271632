package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisLoginStoreConfig struct {
	Addr     string
	Password string
	Timeout  time.Duration
}

// redisLoginStore counts login attempts in fixed windows. INCR and TTL run in
// one transaction; a counter without an expiry gets the window applied, which
// also repairs keys left behind by an interrupted earlier call.
type redisLoginStore struct {
	client  *redis.Client
	timeout time.Duration
}

func newRedisLoginStore(cfg redisLoginStoreConfig) (*redisLoginStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &redisLoginStore{client: client, timeout: timeout}, nil
}

func (s *redisLoginStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	}); err != nil {
		return false, 0, fmt.Errorf("increment login counter: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		expiry := window.Truncate(time.Second)
		if expiry < time.Second {
			expiry = time.Second
		}
		if err := s.client.Expire(ctx, key, expiry).Err(); err != nil {
			return false, 0, fmt.Errorf("expire login counter: %w", err)
		}
		remaining = expiry
	}
	if incr.Val() <= int64(limit) {
		return true, 0, nil
	}
	return false, remaining, nil
}

func (s *redisLoginStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *redisLoginStore) Close() error {
	return s.client.Close()
}
