package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresAdapter struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewPostgresAdapter opens a pgx connection pool for the provided DSN. The
// caller must ensure the schema exists before issuing statements.
func NewPostgresAdapter(ctx context.Context, dsn string, opts ...Option) (Adapter, error) {
	cfg := newConfig(dsn, opts...)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &postgresAdapter{pool: pool, cfg: cfg}, nil
}

func (a *postgresAdapter) QueryAll(ctx context.Context, query string, args []any, scan func(Row) error) error {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (a *postgresAdapter) QueryOne(ctx context.Context, query string, args []any, dest ...any) error {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()

	err := a.pool.QueryRow(ctx, query, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

func (a *postgresAdapter) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()

	tag, err := a.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (a *postgresAdapter) Ping(ctx context.Context) error {
	if a == nil || a.pool == nil {
		return fmt.Errorf("postgres pool not configured")
	}
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()
	return a.pool.Ping(ctx)
}

func (a *postgresAdapter) Close(ctx context.Context) error {
	if a == nil || a.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		a.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

var _ Adapter = (*postgresAdapter)(nil)
