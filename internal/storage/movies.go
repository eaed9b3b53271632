package storage

import (
	"context"
	"errors"
	"fmt"

	"movies-api/internal/models"
)

const (
	listMoviesQuery  = `SELECT id, title, director, year, rating FROM movies`
	getMovieQuery    = `SELECT id, title, director, year, rating FROM movies WHERE id = $1`
	insertMovieQuery = `INSERT INTO movies (title, director, year, rating) VALUES ($1, $2, $3, $4)`
	deleteMovieQuery = `DELETE FROM movies WHERE id = $1`
	countMoviesQuery = `SELECT COUNT(*) FROM movies`
)

// MovieRepository issues the movie statements through an Adapter. It performs
// no transformation beyond parameter binding and row scanning.
type MovieRepository struct {
	db Adapter
}

// NewMovieRepository builds a repository on top of the provided adapter.
func NewMovieRepository(db Adapter) *MovieRepository {
	return &MovieRepository{db: db}
}

func (r *MovieRepository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("datastore not configured")
	}
	return r.db.Ping(ctx)
}

// ListMovies returns every stored movie in datastore order. An empty table
// yields an empty, non-nil slice.
func (r *MovieRepository) ListMovies(ctx context.Context) ([]models.Movie, error) {
	movies := make([]models.Movie, 0)
	err := r.db.QueryAll(ctx, listMoviesQuery, nil, func(row Row) error {
		movie, err := scanMovie(row)
		if err != nil {
			return err
		}
		movies = append(movies, movie)
		return nil
	})
	if err != nil {
		return nil, newStoreError("list movies", err)
	}
	return movies, nil
}

func (r *MovieRepository) GetMovie(ctx context.Context, id int64) (models.Movie, error) {
	var movie models.Movie
	err := r.db.QueryOne(ctx, getMovieQuery, []any{id},
		&movie.ID, &movie.Title, &movie.Director, &movie.Year, &movie.Rating)
	if errors.Is(err, ErrNoRows) {
		return models.Movie{}, ErrNotFound
	}
	if err != nil {
		return models.Movie{}, newStoreError("get movie", err)
	}
	return movie, nil
}

// CreateMovie inserts the movie. The ID field is ignored; the datastore
// assigns it.
func (r *MovieRepository) CreateMovie(ctx context.Context, movie models.Movie) error {
	if _, err := r.db.Execute(ctx, insertMovieQuery, movie.Title, movie.Director, movie.Year, movie.Rating); err != nil {
		return newStoreError("create movie", err)
	}
	return nil
}

// DeleteMovie removes the movie with the given ID. Deleting an ID that does
// not exist is not an error.
func (r *MovieRepository) DeleteMovie(ctx context.Context, id int64) error {
	if _, err := r.db.Execute(ctx, deleteMovieQuery, id); err != nil {
		return newStoreError("delete movie", err)
	}
	return nil
}

// CountMovies reports how many rows the movies table holds.
func (r *MovieRepository) CountMovies(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryOne(ctx, countMoviesQuery, nil, &count); err != nil {
		return 0, newStoreError("count movies", err)
	}
	return count, nil
}

func scanMovie(row Row) (models.Movie, error) {
	var movie models.Movie
	if err := row.Scan(&movie.ID, &movie.Title, &movie.Director, &movie.Year, &movie.Rating); err != nil {
		return models.Movie{}, err
	}
	return movie, nil
}
