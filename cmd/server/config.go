package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"movies-api/internal/api"
	"movies-api/internal/server"
)

const envPrefix = "MOVIES_API_"

const defaultSessionRedisTimeout = 2 * time.Second

type datastoreConfig struct {
	Driver          string
	DSN             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdle     time.Duration
	HealthInterval  time.Duration
	AcquireTimeout  time.Duration
	QueryTimeout    time.Duration
	AppName         string
	ApplySchema     bool
}

type sessionStoreConfig struct {
	Driver        string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration
}

type config struct {
	Mode            string
	Addr            string
	TLSCert         string
	TLSKey          string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Datastore datastoreConfig

	Session              sessionStoreConfig
	SessionTTL           time.Duration
	SessionIdleTimeout   time.Duration
	SessionPurgeInterval time.Duration

	AdminUsername     string
	AdminPasswordHash string

	RateLimit      server.RateLimitConfig
	TrustedProxies []string
	CORSOrigins    []string
}

// loadConfig resolves settings from flags first, then MOVIES_API_* variables,
// then defaults.
func loadConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	addr := fs.String("addr", "", "HTTP listen address")
	mode := fs.String("mode", "", "server runtime mode (development or production)")
	tlsCert := fs.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := fs.String("tls-key", "", "path to TLS private key file")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "log format (json or text)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 0, "maximum time to wait for in-flight requests on shutdown")

	storageDriver := fs.String("storage-driver", "", "datastore driver (postgres or pq)")
	postgresDSN := fs.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := fs.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := fs.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := fs.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := fs.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := fs.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresAcquireTimeout := fs.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresQueryTimeout := fs.Duration("postgres-query-timeout", 0, "timeout applied to each datastore statement")
	postgresAppName := fs.String("postgres-app-name", "", "application_name reported to Postgres")
	applySchema := fs.Bool("apply-schema", false, "create the movies and session tables when missing")

	sessionStoreDriver := fs.String("session-store", "", "session store driver (memory, postgres or redis)")
	sessionPostgresDSN := fs.String("session-postgres-dsn", "", "Postgres DSN for the session store")
	sessionRedisAddr := fs.String("session-redis-addr", "", "Redis address for the session store")
	sessionRedisPassword := fs.String("session-redis-password", "", "Redis password for the session store")
	sessionRedisDB := fs.Int("session-redis-db", 0, "Redis database index for the session store")
	sessionRedisTimeout := fs.Duration("session-redis-timeout", 0, "dial and command timeout for the Redis session store")
	sessionTTL := fs.Duration("session-ttl", 0, "absolute session lifetime")
	sessionIdle := fs.Duration("session-idle-timeout", 0, "idle timeout after which an unused session expires")
	sessionPurge := fs.Duration("session-purge-interval", 0, "interval between expired session sweeps")

	adminUsername := fs.String("admin-username", "", "username accepted by /login")
	adminPasswordHash := fs.String("admin-password-hash", "", "PBKDF2 hash of the admin password (see cmd/tools/hash-password)")

	globalRPS := fs.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := fs.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := fs.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := fs.Duration("rate-login-window", 0, "window for counting login attempts")
	trustedProxies := fs.String("rate-trusted-proxies", "", "comma separated CIDR blocks or IPs of trusted proxies")
	redisAddr := fs.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisPassword := fs.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisTimeout := fs.Duration("rate-redis-timeout", 0, "timeout for Redis operations")

	corsOrigins := fs.String("cors-origins", "", "comma separated origins allowed to call the API cross-site")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg := config{
		Mode:            modeValue(*mode, env("MODE")),
		TLSCert:         firstNonEmpty(*tlsCert, env("TLS_CERT")),
		TLSKey:          firstNonEmpty(*tlsKey, env("TLS_KEY")),
		LogLevel:        firstNonEmpty(*logLevel, env("LOG_LEVEL"), "info"),
		LogFormat:       firstNonEmpty(*logFormat, env("LOG_FORMAT")),
		ShutdownTimeout: resolveDuration(*shutdownTimeout, envPrefix+"SHUTDOWN_TIMEOUT", 10*time.Second),

		SessionTTL:           resolveDuration(*sessionTTL, envPrefix+"SESSION_TTL", 24*time.Hour),
		SessionIdleTimeout:   resolveDuration(*sessionIdle, envPrefix+"SESSION_IDLE_TIMEOUT", 0),
		SessionPurgeInterval: resolveDuration(*sessionPurge, envPrefix+"SESSION_PURGE_INTERVAL", 15*time.Minute),

		AdminUsername:     firstNonEmpty(*adminUsername, env("ADMIN_USERNAME")),
		AdminPasswordHash: firstNonEmpty(*adminPasswordHash, env("ADMIN_PASSWORD_HASH")),

		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, envPrefix+"RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, envPrefix+"RATE_GLOBAL_BURST"),
			LoginLimit:    resolveInt(*loginLimit, envPrefix+"RATE_LOGIN_LIMIT"),
			LoginWindow:   resolveDuration(*loginWindow, envPrefix+"RATE_LOGIN_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*redisAddr, env("RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*redisPassword, env("RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*redisTimeout, envPrefix+"RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		TrustedProxies: splitAndTrim(firstNonEmpty(*trustedProxies, env("RATE_TRUSTED_PROXIES"))),
		CORSOrigins:    splitAndTrim(firstNonEmpty(*corsOrigins, env("CORS_ORIGINS"))),
	}
	cfg.Addr = resolveListenAddr(*addr, cfg.Mode, env("ADDR"))

	dsn := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveStorageDriver(*storageDriver, env("STORAGE_DRIVER"), dsn)
	if err != nil {
		return config{}, err
	}
	if dsn == "" {
		return config{}, fmt.Errorf("%s datastore selected without DSN: set --postgres-dsn, %sPOSTGRES_DSN, or DATABASE_URL", driver, envPrefix)
	}
	cfg.Datastore = datastoreConfig{
		Driver:          driver,
		DSN:             dsn,
		MaxConns:        resolveInt(*postgresMaxConns, envPrefix+"POSTGRES_MAX_CONNS"),
		MinConns:        resolveInt(*postgresMinConns, envPrefix+"POSTGRES_MIN_CONNS"),
		MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, envPrefix+"POSTGRES_MAX_CONN_LIFETIME", 0),
		MaxConnIdle:     resolveDuration(*postgresMaxConnIdle, envPrefix+"POSTGRES_MAX_CONN_IDLE", 0),
		HealthInterval:  resolveDuration(*postgresHealthInterval, envPrefix+"POSTGRES_HEALTH_INTERVAL", 0),
		AcquireTimeout:  resolveDuration(*postgresAcquireTimeout, envPrefix+"POSTGRES_ACQUIRE_TIMEOUT", 0),
		QueryTimeout:    resolveDuration(*postgresQueryTimeout, envPrefix+"POSTGRES_QUERY_TIMEOUT", 0),
		AppName:         firstNonEmpty(*postgresAppName, env("POSTGRES_APP_NAME"), "movies-api"),
		ApplySchema:     resolveBool(*applySchema, envPrefix+"APPLY_SCHEMA"),
	}

	cfg.Session, err = resolveSessionStoreConfig(sessionStoreInput{
		FlagDriver:    *sessionStoreDriver,
		EnvDriver:     env("SESSION_STORE"),
		StorageDriver: driver,
		StorageDSN:    dsn,
		FlagDSN:       *sessionPostgresDSN,
		EnvDSN:        env("SESSION_POSTGRES_DSN"),
		RedisAddr:     firstNonEmpty(*sessionRedisAddr, env("SESSION_REDIS_ADDR")),
		RedisPassword: firstNonEmpty(*sessionRedisPassword, env("SESSION_REDIS_PASSWORD")),
		RedisDB:       resolveInt(*sessionRedisDB, envPrefix+"SESSION_REDIS_DB"),
		RedisTimeout:  resolveDuration(*sessionRedisTimeout, envPrefix+"SESSION_REDIS_TIMEOUT", defaultSessionRedisTimeout),
	})
	if err != nil {
		return config{}, err
	}

	if cfg.Mode == "production" {
		if err := validateProductionConfig(cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}

func env(key string) string {
	return os.Getenv(envPrefix + key)
}

type sessionStoreInput struct {
	FlagDriver    string
	EnvDriver     string
	StorageDriver string
	StorageDSN    string
	FlagDSN       string
	EnvDSN        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration
}

func resolveSessionStoreConfig(in sessionStoreInput) (sessionStoreConfig, error) {
	driver := strings.ToLower(strings.TrimSpace(in.FlagDriver))
	if driver == "" {
		driver = strings.ToLower(strings.TrimSpace(in.EnvDriver))
	}

	sessionDSN := strings.TrimSpace(firstNonEmpty(in.FlagDSN, in.EnvDSN))
	if driver == "" {
		switch {
		case sessionDSN != "":
			driver = "postgres"
		case strings.TrimSpace(in.RedisAddr) != "":
			driver = "redis"
		default:
			driver = "memory"
		}
	}

	switch driver {
	case "memory":
		return sessionStoreConfig{Driver: "memory"}, nil
	case "postgres":
		if sessionDSN == "" {
			sessionDSN = strings.TrimSpace(in.StorageDSN)
		}
		if sessionDSN == "" {
			return sessionStoreConfig{}, fmt.Errorf("postgres session store selected without DSN")
		}
		return sessionStoreConfig{Driver: "postgres", DSN: sessionDSN}, nil
	case "redis":
		addr := strings.TrimSpace(in.RedisAddr)
		if addr == "" {
			return sessionStoreConfig{}, fmt.Errorf("redis session store selected without address")
		}
		timeout := in.RedisTimeout
		if timeout <= 0 {
			timeout = defaultSessionRedisTimeout
		}
		return sessionStoreConfig{
			Driver:        "redis",
			RedisAddr:     addr,
			RedisPassword: in.RedisPassword,
			RedisDB:       in.RedisDB,
			RedisTimeout:  timeout,
		}, nil
	default:
		return sessionStoreConfig{}, fmt.Errorf("unsupported session store driver %q", driver)
	}
}

func validateProductionConfig(cfg config) error {
	var problems []string
	if cfg.AdminPasswordHash == "" {
		problems = append(problems, "production mode requires "+envPrefix+"ADMIN_PASSWORD_HASH")
	}
	if cfg.Session.Driver == "memory" {
		problems = append(problems, "production mode requires a shared session store (postgres or redis)")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

func resolveSessionCookieSecureMode(mode string) api.SessionCookieSecureMode {
	if strings.EqualFold(strings.TrimSpace(mode), "production") {
		return api.SessionCookieSecureAlways
	}
	return api.SessionCookieSecureAuto
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
	driver := strings.ToLower(strings.TrimSpace(firstNonEmpty(flagValue, envValue)))
	if driver == "" {
		if strings.TrimSpace(postgresDSN) == "" {
			return "", fmt.Errorf("no datastore configured: provide --postgres-dsn, %sPOSTGRES_DSN, or DATABASE_URL", envPrefix)
		}
		driver = "postgres"
	}
	switch driver {
	case "postgres", "pq":
		return driver, nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, env("POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
