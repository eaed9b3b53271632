package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// pqDriverName is the database/sql driver name registered by lib/pq.
const pqDriverName = "postgres"

type sqlAdapter struct {
	db  *sql.DB
	cfg Config
}

// NewPQAdapter opens a database/sql pool through the lib/pq driver. Pool
// limits map onto the equivalent sql.DB knobs.
func NewPQAdapter(ctx context.Context, dsn string, opts ...Option) (Adapter, error) {
	cfg := newConfig(dsn, opts...)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open(pqDriverName, dsnWithApplicationName(cfg.DSN, cfg.ApplicationName))
	if err != nil {
		return nil, fmt.Errorf("open pq database: %w", err)
	}
	adapter := NewSQLAdapter(db, opts...).(*sqlAdapter)
	adapter.cfg.DSN = cfg.DSN

	if cfg.AcquireTimeout > 0 {
		if ctx == nil {
			ctx = context.Background()
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect pq database: %w", err)
		}
	}
	return adapter, nil
}

// NewSQLAdapter wraps an already opened *sql.DB.
func NewSQLAdapter(db *sql.DB, opts ...Option) Adapter {
	cfg := newConfig("", opts...)
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConnections))
	}
	if cfg.MinConnections > 0 {
		db.SetMaxIdleConns(int(cfg.MinConnections))
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}
	return &sqlAdapter{db: db, cfg: cfg}
}

func (a *sqlAdapter) QueryAll(ctx context.Context, query string, args []any, scan func(Row) error) error {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()

	rows, err := a.db.QueryContext(ctx, query, args...)
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

func (a *sqlAdapter) QueryOne(ctx context.Context, query string, args []any, dest ...any) error {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()

	err := a.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

func (a *sqlAdapter) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (a *sqlAdapter) Ping(ctx context.Context) error {
	ctx, cancel := a.cfg.queryContext(ctx)
	defer cancel()
	return a.db.PingContext(ctx)
}

func (a *sqlAdapter) Close(context.Context) error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

var _ Adapter = (*sqlAdapter)(nil)
