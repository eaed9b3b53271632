package storage

import (
	"movies-api/internal/models"
)

const (
	minMovieRating = 0
	maxMovieRating = 5
)

// MovieInput is the client supplied payload for creating a movie. Pointer
// fields distinguish an absent (or null) value from a zero value.
type MovieInput struct {
	Title    *string  `json:"title"`
	Director *string  `json:"director"`
	Year     *int     `json:"year"`
	Rating   *float64 `json:"rating"`
}

// ValidateMovieInput checks that every field is present and the rating lies in
// [0,5]. It returns the movie ready for insertion or a *ValidationError.
func ValidateMovieInput(input MovieInput) (models.Movie, error) {
	problems := make(map[string]string)
	if input.Title == nil {
		problems["title"] = "must be provided"
	}
	if input.Director == nil {
		problems["director"] = "must be provided"
	}
	if input.Year == nil {
		problems["year"] = "must be provided"
	}
	if input.Rating == nil {
		problems["rating"] = "must be provided"
	} else if *input.Rating < minMovieRating || *input.Rating > maxMovieRating {
		problems["rating"] = "must be between 0 and 5"
	}
	if len(problems) > 0 {
		return models.Movie{}, &ValidationError{Fields: problems}
	}
	return models.Movie{
		Title:    *input.Title,
		Director: *input.Director,
		Year:     *input.Year,
		Rating:   *input.Rating,
	}, nil
}
