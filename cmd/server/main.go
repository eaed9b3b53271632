// Command server starts the movies API HTTP service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"movies-api/internal/api"
	"movies-api/internal/auth"
	"movies-api/internal/observability/logging"
	"movies-api/internal/observability/metrics"
	"movies-api/internal/server"
	"movies-api/internal/serverutil"
	"movies-api/internal/storage"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	recorder := metrics.Default()

	adapter, err := openDatastore(ctx, cfg.Datastore)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer closeWithTimeout(logger, "datastore", adapter.Close)

	if cfg.Datastore.ApplySchema {
		if err := storage.EnsureSchema(ctx, adapter); err != nil {
			return err
		}
		logger.Info("movies schema applied")
	}

	sessionStore, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	sessionOpts := []auth.SessionOption{auth.WithStore(sessionStore)}
	if cfg.SessionIdleTimeout > 0 {
		sessionOpts = append(sessionOpts, auth.WithIdleTimeout(cfg.SessionIdleTimeout))
	}
	sessions := auth.NewSessionManager(cfg.SessionTTL, sessionOpts...)
	defer closeWithTimeout(logger, "session store", sessions.Close)

	credentials, err := resolveCredentials(cfg, logger)
	if err != nil {
		return err
	}
	guard, err := auth.NewGuard(credentials, sessions)
	if err != nil {
		return err
	}

	handler := api.NewHandler(storage.NewMovieRepository(adapter), guard)
	handler.Logger = logging.WithComponent(logger, "api")
	handler.Metrics = recorder
	handler.SessionCookiePolicy.SecureMode = resolveSessionCookieSecureMode(cfg.Mode)

	srv, err := server.New(handler, server.Config{
		Addr:            cfg.Addr,
		TLS:             serverutil.TLSConfig{CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey},
		RateLimit:       cfg.RateLimit,
		CORS:            server.CORSConfig{AllowedOrigins: cfg.CORSOrigins},
		TrustedProxies:  cfg.TrustedProxies,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
		AuditLogger:     logging.WithComponent(logger, "audit"),
		Metrics:         recorder,
	})
	if err != nil {
		return fmt.Errorf("initialise server: %w", err)
	}

	logger.Info("movies API starting",
		"addr", cfg.Addr,
		"mode", cfg.Mode,
		"storage_driver", cfg.Datastore.Driver,
		"storage_dsn", redactDSN(cfg.Datastore.DSN),
		"session_store", cfg.Session.Driver,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(groupCtx)
	})
	group.Go(func() error {
		runSessionPurger(groupCtx, logging.WithComponent(logger, "session-purger"), recorder, sessions, cfg.SessionPurgeInterval)
		return nil
	})
	return group.Wait()
}

func openDatastore(ctx context.Context, cfg datastoreConfig) (storage.Adapter, error) {
	var opts []storage.Option
	if cfg.MaxConns > 0 || cfg.MinConns > 0 {
		opts = append(opts, storage.WithPoolLimits(int32(cfg.MaxConns), int32(cfg.MinConns)))
	}
	if cfg.MaxConnLifetime > 0 || cfg.MaxConnIdle > 0 || cfg.HealthInterval > 0 {
		opts = append(opts, storage.WithPoolDurations(cfg.MaxConnLifetime, cfg.MaxConnIdle, cfg.HealthInterval))
	}
	if cfg.AcquireTimeout > 0 {
		opts = append(opts, storage.WithAcquireTimeout(cfg.AcquireTimeout))
	}
	if cfg.QueryTimeout > 0 {
		opts = append(opts, storage.WithQueryTimeout(cfg.QueryTimeout))
	}
	if cfg.AppName != "" {
		opts = append(opts, storage.WithApplicationName(cfg.AppName))
	}

	switch cfg.Driver {
	case "postgres":
		return storage.NewPostgresAdapter(ctx, cfg.DSN, opts...)
	case "pq":
		return storage.NewPQAdapter(ctx, cfg.DSN, opts...)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func openSessionStore(ctx context.Context, cfg config, logger *slog.Logger) (auth.SessionStore, error) {
	switch cfg.Session.Driver {
	case "memory":
		if cfg.Mode != "production" {
			logger.Warn("using in-memory session store; sessions are lost on restart")
		}
		return auth.NewMemorySessionStore(), nil
	case "postgres":
		store, err := auth.NewPostgresSessionStore(ctx, cfg.Session.DSN, auth.WithTimeout(cfg.Datastore.AcquireTimeout))
		if err != nil {
			return nil, err
		}
		if cfg.Datastore.ApplySchema {
			if err := store.EnsureSchema(ctx); err != nil {
				closeWithTimeout(logger, "session store", store.Close)
				return nil, err
			}
		}
		return store, nil
	case "redis":
		store, err := auth.NewRedisSessionStore(auth.RedisSessionStoreOptions{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			Timeout:  cfg.Session.RedisTimeout,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			closeWithTimeout(logger, "session store", store.Close)
			return nil, fmt.Errorf("ping redis session store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store driver %q", cfg.Session.Driver)
	}
}

func resolveCredentials(cfg config, logger *slog.Logger) (*auth.Credentials, error) {
	username := firstNonEmpty(cfg.AdminUsername, auth.DefaultUsername)
	if cfg.AdminPasswordHash != "" {
		credentials, err := auth.NewCredentialsFromHash(username, cfg.AdminPasswordHash)
		if err != nil {
			return nil, fmt.Errorf("admin credentials: %w", err)
		}
		return credentials, nil
	}
	logger.Warn("no admin password hash configured; accepting the default password", "username", username)
	credentials, err := auth.NewCredentials(username, auth.DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("admin credentials: %w", err)
	}
	return credentials, nil
}

func closeWithTimeout(logger *slog.Logger, name string, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		logger.Warn("failed to close "+name, "error", err)
	}
}

// redactDSN masks the password in URL and keyword/value connection strings.
func redactDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ""
	}
	if parsed, err := url.Parse(dsn); err == nil && parsed.Scheme != "" {
		if parsed.User != nil {
			if _, ok := parsed.User.Password(); ok {
				parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
			}
		}
		return parsed.String()
	}
	fields := strings.Fields(dsn)
	for i, field := range fields {
		if key, _, ok := strings.Cut(field, "="); ok && strings.EqualFold(key, "password") {
			fields[i] = key + "=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
