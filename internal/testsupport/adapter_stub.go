package testsupport

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"movies-api/internal/storage"
)

// AdapterCall records a single statement issued through an AdapterStub.
type AdapterCall struct {
	Method string
	Query  string
	Args   []any
}

// AdapterStub is a programmable storage.Adapter for tests. Each hook returns
// raw row values the way a database would; a nil hook behaves like an empty
// datastore that accepts every statement.
type AdapterStub struct {
	mu    sync.Mutex
	calls []AdapterCall

	// QueryAllFunc returns every row for a QueryAll call.
	QueryAllFunc func(query string, args []any) ([][]any, error)
	// QueryOneFunc returns the first row, or nil to signal no rows.
	QueryOneFunc func(query string, args []any) ([]any, error)
	ExecuteFunc  func(query string, args []any) (int64, error)
	PingErr      error
}

// NewAdapterStub constructs an AdapterStub with no hooks installed.
func NewAdapterStub() *AdapterStub {
	return &AdapterStub{}
}

func (s *AdapterStub) record(method, query string, args []any) {
	s.mu.Lock()
	s.calls = append(s.calls, AdapterCall{Method: method, Query: query, Args: append([]any(nil), args...)})
	s.mu.Unlock()
}

// Calls returns a copy of every statement issued so far.
func (s *AdapterStub) Calls() []AdapterCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AdapterCall(nil), s.calls...)
}

func (s *AdapterStub) QueryAll(_ context.Context, query string, args []any, scan func(storage.Row) error) error {
	s.record("QueryAll", query, args)
	if s.QueryAllFunc == nil {
		return nil
	}
	rows, err := s.QueryAllFunc(query, args)
	if err != nil {
		return err
	}
	for _, values := range rows {
		if err := scan(StubRow(values)); err != nil {
			return err
		}
	}
	return nil
}

func (s *AdapterStub) QueryOne(_ context.Context, query string, args []any, dest ...any) error {
	s.record("QueryOne", query, args)
	if s.QueryOneFunc == nil {
		return storage.ErrNoRows
	}
	values, err := s.QueryOneFunc(query, args)
	if err != nil {
		return err
	}
	if values == nil {
		return storage.ErrNoRows
	}
	return StubRow(values).Scan(dest...)
}

func (s *AdapterStub) Execute(_ context.Context, query string, args ...any) (int64, error) {
	s.record("Execute", query, args)
	if s.ExecuteFunc == nil {
		return 1, nil
	}
	return s.ExecuteFunc(query, args)
}

func (s *AdapterStub) Ping(context.Context) error {
	return s.PingErr
}

func (s *AdapterStub) Close(context.Context) error {
	return nil
}

// StubRow scans its values positionally into destination pointers, converting
// between compatible kinds the way database drivers do.
type StubRow []any

func (r StubRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(r), len(dest))
	}
	for i, target := range dest {
		ptr := reflect.ValueOf(target)
		if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		elem := ptr.Elem()
		value := reflect.ValueOf(r[i])
		if !value.IsValid() {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		if !value.Type().ConvertibleTo(elem.Type()) {
			return fmt.Errorf("scan: cannot convert column %d (%T) into %s", i, r[i], elem.Type())
		}
		elem.Set(value.Convert(elem.Type()))
	}
	return nil
}

var _ storage.Adapter = (*AdapterStub)(nil)
