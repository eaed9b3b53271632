package storage

import (
	"context"

	"movies-api/internal/models"
)

// Repository exposes the datastore operations required by the API handlers.
// Implementations report absent movies with ErrNotFound and every other
// datastore failure as a *StoreError.
type Repository interface {
	Ping(ctx context.Context) error

	ListMovies(ctx context.Context) ([]models.Movie, error)
	GetMovie(ctx context.Context, id int64) (models.Movie, error)
	CreateMovie(ctx context.Context, movie models.Movie) error
	DeleteMovie(ctx context.Context, id int64) error
}

var _ Repository = (*MovieRepository)(nil)
