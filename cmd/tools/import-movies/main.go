// Command import-movies loads a JSON array of movies into Postgres.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"movies-api/internal/models"
	"movies-api/internal/observability/logging"
	"movies-api/internal/storage"
)

func main() {
	jsonPath := flag.String("json", "data/movies.json", "path to a JSON array of movies")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	driver := flag.String("driver", "postgres", "datastore driver (postgres or pq)")
	applySchema := flag.Bool("apply-schema", true, "create the movies table when missing")
	flag.Parse()

	logger := logging.Init(logging.Config{Level: "info", Format: "text"})

	dsn := strings.TrimSpace(*postgresDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("MOVIES_API_POSTGRES_DSN"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		logger.Error("postgres DSN required", "hint", "set --postgres-dsn, MOVIES_API_POSTGRES_DSN, or DATABASE_URL")
		os.Exit(1)
	}

	file, err := os.Open(*jsonPath)
	if err != nil {
		logger.Error("failed to open movies file", "error", err)
		os.Exit(1)
	}
	movies, err := decodeMovies(file)
	file.Close()
	if err != nil {
		logger.Error("failed to load movies", "path", *jsonPath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded movies", "path", *jsonPath, "count", len(movies))

	ctx := context.Background()
	adapter, err := openAdapter(ctx, *driver, dsn)
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adapter.Close(closeCtx)
	}()

	if *applySchema {
		if err := storage.EnsureSchema(ctx, adapter); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	imported, err := importMovies(ctx, storage.NewMovieRepository(adapter), movies)
	if err != nil {
		logger.Error("import failed", "imported", imported, "error", err)
		os.Exit(1)
	}
	logger.Info("import completed", "imported", imported)
}

func openAdapter(ctx context.Context, driver, dsn string) (storage.Adapter, error) {
	opts := []storage.Option{storage.WithApplicationName("movies-import")}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres":
		return storage.NewPostgresAdapter(ctx, dsn, opts...)
	case "pq":
		return storage.NewPQAdapter(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// decodeMovies validates every entry before anything is written so a bad file
// never leaves a partial import behind.
func decodeMovies(r io.Reader) ([]models.Movie, error) {
	var inputs []storage.MovieInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode movies: %w", err)
	}
	movies := make([]models.Movie, 0, len(inputs))
	var problems []error
	for i, input := range inputs {
		movie, err := storage.ValidateMovieInput(input)
		if err != nil {
			problems = append(problems, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		movies = append(movies, movie)
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return movies, nil
}

type movieImporter interface {
	CountMovies(ctx context.Context) (int64, error)
	CreateMovie(ctx context.Context, movie models.Movie) error
}

// importMovies inserts the movies and confirms the table grew by the same
// amount. It returns the number of inserted rows.
func importMovies(ctx context.Context, repo movieImporter, movies []models.Movie) (int, error) {
	before, err := repo.CountMovies(ctx)
	if err != nil {
		return 0, err
	}
	for i, movie := range movies {
		if err := repo.CreateMovie(ctx, movie); err != nil {
			return i, fmt.Errorf("insert %q: %w", movie.Title, err)
		}
	}
	after, err := repo.CountMovies(ctx)
	if err != nil {
		return len(movies), err
	}
	if delta := after - before; delta != int64(len(movies)) {
		return len(movies), fmt.Errorf("verification mismatch: expected %d new rows, found %d", len(movies), delta)
	}
	return len(movies), nil
}
