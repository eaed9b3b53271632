package storage

import (
	"context"
	"errors"
)

// ErrNoRows is returned by Adapter.QueryOne when the statement matched nothing.
var ErrNoRows = errors.New("storage: no rows in result set")

// Row is the scanning surface shared by pgx.Rows, pgx.Row, *sql.Rows and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Adapter is the narrow query interface repositories issue parameterized
// statements through. Implementations translate driver specific "no rows"
// conditions into ErrNoRows and otherwise return driver errors untouched.
type Adapter interface {
	// QueryAll runs the query and invokes scan once per returned row.
	QueryAll(ctx context.Context, query string, args []any, scan func(Row) error) error
	// QueryOne scans the first row into dest, or returns ErrNoRows.
	QueryOne(ctx context.Context, query string, args []any, dest ...any) error
	// Execute runs a statement that returns no rows and reports rows affected.
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
