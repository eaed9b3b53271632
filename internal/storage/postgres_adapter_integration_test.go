//go:build postgres

package storage_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"movies-api/internal/models"
	"movies-api/internal/storage"
)

type adapterFactory func(ctx context.Context, dsn string, opts ...storage.Option) (storage.Adapter, error)

func TestMovieRepositoryPostgresAdapters(t *testing.T) {
	factories := map[string]adapterFactory{
		"pgx": storage.NewPostgresAdapter,
		"pq":  storage.NewPQAdapter,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			adapter := openAdapterForTest(t, factory)
			runRepositoryScenario(t, storage.NewMovieRepository(adapter))
		})
	}
}

func openAdapterForTest(t *testing.T, factory adapterFactory) storage.Adapter {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("MOVIES_API_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("MOVIES_API_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	adapter, err := factory(ctx, dsn,
		storage.WithPoolLimits(4, 0),
		storage.WithAcquireTimeout(5*time.Second),
		storage.WithQueryTimeout(5*time.Second),
		storage.WithApplicationName("movies-api-test"),
	)
	if err != nil {
		t.Fatalf("open adapter: %v", err)
	}
	t.Cleanup(func() {
		_ = adapter.Close(context.Background())
	})
	if err := storage.EnsureSchema(ctx, adapter); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := adapter.Execute(ctx, "TRUNCATE movies RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate movies: %v", err)
	}
	return adapter
}

func runRepositoryScenario(t *testing.T, repo *storage.MovieRepository) {
	t.Helper()
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	movies, err := repo.ListMovies(ctx)
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if len(movies) != 0 {
		t.Fatalf("expected empty table, got %d movies", len(movies))
	}

	input := models.Movie{Title: "Inception", Director: "Christopher Nolan", Year: 2010, Rating: 4.5}
	if err := repo.CreateMovie(ctx, input); err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	movies, err = repo.ListMovies(ctx)
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("expected 1 movie, got %d", len(movies))
	}
	created := movies[0]
	if created.ID == 0 {
		t.Fatal("expected datastore assigned id")
	}

	fetched, err := repo.GetMovie(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	input.ID = created.ID
	if fetched != input {
		t.Fatalf("expected %+v, got %+v", input, fetched)
	}

	if err := repo.CreateMovie(ctx, models.Movie{Title: "Bad", Director: "Bad", Year: 2000, Rating: 9}); err == nil {
		t.Fatal("expected check constraint violation")
	} else {
		var storeErr *storage.StoreError
		if !errors.As(err, &storeErr) {
			t.Fatalf("expected StoreError, got %v", err)
		}
	}

	if err := repo.DeleteMovie(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMovie: %v", err)
	}
	if err := repo.DeleteMovie(ctx, created.ID); err != nil {
		t.Fatalf("second DeleteMovie should succeed, got %v", err)
	}
	if _, err := repo.GetMovie(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
