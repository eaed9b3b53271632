package storage

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestValidateMovieInput(t *testing.T) {
	complete := func() MovieInput {
		return MovieInput{
			Title:    ptr("Movie 1"),
			Director: ptr("Director 1"),
			Year:     ptr(2022),
			Rating:   ptr(4.0),
		}
	}

	cases := []struct {
		name       string
		mutate     func(*MovieInput)
		wantFields []string
	}{
		{name: "complete payload", mutate: func(*MovieInput) {}},
		{name: "rating lower bound", mutate: func(in *MovieInput) { in.Rating = ptr(0.0) }},
		{name: "rating upper bound", mutate: func(in *MovieInput) { in.Rating = ptr(5.0) }},
		{name: "empty strings count as present", mutate: func(in *MovieInput) { in.Title = ptr(""); in.Director = ptr("") }},
		{name: "missing title", mutate: func(in *MovieInput) { in.Title = nil }, wantFields: []string{"title"}},
		{name: "missing director", mutate: func(in *MovieInput) { in.Director = nil }, wantFields: []string{"director"}},
		{name: "missing year", mutate: func(in *MovieInput) { in.Year = nil }, wantFields: []string{"year"}},
		{name: "missing rating", mutate: func(in *MovieInput) { in.Rating = nil }, wantFields: []string{"rating"}},
		{name: "rating above range", mutate: func(in *MovieInput) { in.Rating = ptr(6.0) }, wantFields: []string{"rating"}},
		{name: "rating below range", mutate: func(in *MovieInput) { in.Rating = ptr(-0.5) }, wantFields: []string{"rating"}},
		{
			name:       "year and rating missing",
			mutate:     func(in *MovieInput) { in.Year = nil; in.Rating = nil },
			wantFields: []string{"year", "rating"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := complete()
			tc.mutate(&input)

			movie, err := ValidateMovieInput(input)
			if len(tc.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected valid input, got %v", err)
				}
				if movie.Title != *input.Title || movie.Year != *input.Year || movie.Rating != *input.Rating {
					t.Fatalf("unexpected movie %+v", movie)
				}
				if movie.ID != 0 {
					t.Fatalf("expected unset id, got %d", movie.ID)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(validationErr.Fields) != len(tc.wantFields) {
				t.Fatalf("expected fields %v, got %v", tc.wantFields, validationErr.Fields)
			}
			for _, field := range tc.wantFields {
				if _, ok := validationErr.Fields[field]; !ok {
					t.Fatalf("expected %s to be reported, got %v", field, validationErr.Fields)
				}
			}
			if !IsValidationError(err) {
				t.Fatal("IsValidationError should report true")
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"year": "must be provided", "director": "must be provided"}}
	want := "director: must be provided; year: must be provided"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
