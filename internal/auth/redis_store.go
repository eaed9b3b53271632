package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "movies:session:"

// RedisSessionStoreOptions configures the Redis-backed session store.
type RedisSessionStoreOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisSessionStore keeps sessions in Redis keyed by the token digest. Keys
// carry a TTL matching the session expiry so Redis evicts them on its own.
type RedisSessionStore struct {
	client  *redis.Client
	timeout time.Duration
	now     func() time.Time
}

type redisSession struct {
	Subject           string    `json:"subject"`
	ExpiresAt         time.Time `json:"expiresAt"`
	AbsoluteExpiresAt time.Time `json:"absoluteExpiresAt"`
}

// NewRedisSessionStore connects a session store to the configured Redis server.
func NewRedisSessionStore(opts RedisSessionStoreOptions) (*RedisSessionStore, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis session addr required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return &RedisSessionStore{client: client, timeout: timeout, now: time.Now}, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, token, subject string, expiresAt, absoluteExpiresAt time.Time) error {
	key, err := redisSessionKey(token)
	if err != nil {
		return err
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, token)
	}
	payload, err := json.Marshal(redisSession{
		Subject:           subject,
		ExpiresAt:         expiresAt.UTC(),
		AbsoluteExpiresAt: absoluteExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (SessionRecord, bool, error) {
	key, err := redisSessionKey(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, fmt.Errorf("load session: %w", err)
	}
	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return SessionRecord{}, false, fmt.Errorf("decode session: %w", err)
	}
	return SessionRecord{
		Token:             token,
		Subject:           stored.Subject,
		ExpiresAt:         stored.ExpiresAt,
		AbsoluteExpiresAt: stored.AbsoluteExpiresAt,
	}, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	key, err := redisSessionKey(token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op; Redis expires session keys itself.
func (s *RedisSessionStore) PurgeExpired(context.Context, time.Time) error {
	return nil
}

// Ping checks connectivity to Redis.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client connections.
func (s *RedisSessionStore) Close(context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func redisSessionKey(token string) (string, error) {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return "", err
	}
	return redisSessionPrefix + hashed, nil
}
