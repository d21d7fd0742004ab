package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/stremify/internal/apperr"
	"github.com/dukerupert/stremify/internal/model"
	"github.com/dukerupert/stremify/internal/storage"
	"github.com/dukerupert/stremify/internal/store"
)

const (
	maxImageSize     = 5 << 20
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// ImageStore persists uploaded movie images.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

type MovieHandler struct {
	movies *store.MovieStore
	images ImageStore
	logger *slog.Logger
}

func NewMovieHandler(movies *store.MovieStore, images ImageStore, logger *slog.Logger) *MovieHandler {
	return &MovieHandler{movies: movies, images: images, logger: logger}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMovieForm validates the multipart fields of a new movie.
func parseMovieForm(r *http.Request) (*model.Movie, error) {
	var fields []apperr.FieldError
	check := func(ok bool, field, msg string) {
		if !ok {
			fields = append(fields, apperr.FieldError{Field: field, Message: msg})
		}
	}
	value := func(name string) string { return strings.TrimSpace(r.FormValue(name)) }

	m := &model.Movie{
		Title:     value("title"),
		Synopsis:  value("synopsis"),
		AgeRating: value("ageRating"),
		Genres:    splitList(value("genre")),
		Actors:    splitList(value("actors")),
		Warnings:  strings.ToLower(value("warnings")),
	}
	year, yearErr := strconv.Atoi(value("releaseYear"))
	duration, durErr := strconv.Atoi(value("duration"))
	m.ReleaseYear, m.Duration = year, duration

	check(m.Title != "", "title", "Title must be at least 1 character long")
	check(yearErr == nil && len(value("releaseYear")) == 4, "releaseYear", "Release year must be a 4 digit year")
	check(durErr == nil && duration > 0, "duration", "Duration must be a positive number of minutes")
	check(len(m.Synopsis) >= 10, "synopsis", "Synopsis must be at least 10 characters long")
	check(m.AgeRating != "", "ageRating", "Age rating must be at least 1 character long")
	check(len(m.Genres) > 0, "genre", "Genre must be at least 1 character long")
	check(len(value("actors")) >= 3, "actors", "Actors must be at least 3 characters long")
	check(len(m.Warnings) >= 3, "warnings", "Warnings must be at least 3 characters long")

	if raw := value("additional_info"); raw != "" {
		var info model.MovieInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			check(false, "additional_info", "Error parsing additional_info")
		} else {
			m.AdditionalInfo = &info
		}
	}

	if len(fields) > 0 {
		return nil, apperr.Validation(fields...)
	}
	return m, nil
}

// Create adds a movie from a multipart form with an optional "image" file.
func (h *MovieHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+(1<<20))
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	movie, err := parseMovieForm(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image"})
		return
	default:
		defer file.Close()
		if header.Size > maxImageSize {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image exceeds 5MB"})
			return
		}
		key := storage.ImageKey("movies", header.Filename)
		if err := h.images.Put(r.Context(), key, header.Header.Get("Content-Type"), file, header.Size); err != nil {
			writeError(w, h.logger, apperr.External("Failed to upload image", err))
			return
		}
		movie.ImageKey = &key
	}

	created, err := h.movies.Create(r.Context(), movie)
	if err != nil {
		if movie.ImageKey != nil {
			if derr := h.images.Delete(r.Context(), *movie.ImageKey); derr != nil {
				h.logger.Warn("delete orphaned image", "key", *movie.ImageKey, "error", derr)
			}
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}

	h.logger.Info("movie added", "movie_id", created.ID, "title", created.Title)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Movie added", "movie": created})
}

func (h *MovieHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	movies, err := h.movies.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

func (h *MovieHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	movie, err := h.movies.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if movie == nil {
		writeError(w, h.logger, apperr.NotFound("movie not found"))
		return
	}
	writeJSON(w, http.StatusOK, movie)
}
