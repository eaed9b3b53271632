package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"movies-api/internal/storage"
)

// MovieIDParam names the route parameter holding the movie id.
const MovieIDParam = "movieId"

var errInternal = errors.New("internal server error")

// ListMovies writes every movie, or 204 with no body when there are none.
func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.Movies.ListMovies(r.Context())
	if err != nil {
		h.storeFailure(w, r, "list", err)
		return
	}
	if len(movies) == 0 {
		h.metrics().ObserveMovieOperation("list", "empty")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.metrics().ObserveMovieOperation("list", "ok")
	writeJSON(w, http.StatusOK, movies)
}

// GetMovie writes the movie named by the route id. A non-integer id is
// reported the same way as an unknown one.
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := movieIDFromRequest(r)
	if !ok {
		h.notFound(w, "get")
		return
	}
	movie, err := h.Movies.GetMovie(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.notFound(w, "get")
			return
		}
		h.storeFailure(w, r, "get", err)
		return
	}
	h.metrics().ObserveMovieOperation("get", "ok")
	writeJSON(w, http.StatusOK, movie)
}

// CreateMovie validates the payload and inserts it. Success answers with the
// plain text body "Created"; a store failure answers with the raw cause text.
func (h *Handler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	var input storage.MovieInput
	if err := decodeJSONAllowUnknown(w, r, &input); err != nil {
		h.metrics().ObserveMovieOperation("create", "invalid")
		writeError(w, http.StatusBadRequest, err)
		return
	}
	movie, err := storage.ValidateMovieInput(input)
	if err != nil {
		h.metrics().ObserveMovieOperation("create", "invalid")
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Movies.CreateMovie(r.Context(), movie); err != nil {
		h.metrics().ObserveMovieOperation("create", "error")
		h.logStoreFailure(r, "create", err)
		writeText(w, http.StatusInternalServerError, storeCause(err))
		return
	}
	h.metrics().ObserveMovieOperation("create", "ok")
	writeText(w, http.StatusCreated, "Created")
}

// DeleteMovie removes the movie named by the route id. The caller must hold a
// valid session; deleting an unknown id still succeeds.
func (h *Handler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r); !ok {
		h.metrics().ObserveMovieOperation("delete", "unauthorized")
		return
	}
	id, ok := movieIDFromRequest(r)
	if !ok {
		h.notFound(w, "delete")
		return
	}
	if err := h.Movies.DeleteMovie(r.Context(), id); err != nil {
		h.storeFailure(w, r, "delete", err)
		return
	}
	h.metrics().ObserveMovieOperation("delete", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notFound(w http.ResponseWriter, operation string) {
	h.metrics().ObserveMovieOperation(operation, "not_found")
	writeError(w, http.StatusNotFound, storage.ErrNotFound)
}

func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, operation string, err error) {
	h.metrics().ObserveMovieOperation(operation, "error")
	h.logStoreFailure(r, operation, err)
	writeError(w, http.StatusInternalServerError, errInternal)
}

func (h *Handler) logStoreFailure(r *http.Request, operation string, err error) {
	attrs := []any{"operation", operation, "error", err}
	var storeErr *storage.StoreError
	if errors.As(err, &storeErr) {
		attrs = append(attrs, "store_op", storeErr.Op)
	}
	h.logger(r.Context()).Error("movie store failure", attrs...)
}

func storeCause(err error) string {
	var storeErr *storage.StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Cause()
	}
	return err.Error()
}

func movieIDFromRequest(r *http.Request) (int64, bool) {
	raw := httprouter.ParamsFromContext(r.Context()).ByName(MovieIDParam)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
