package store

import (
	"context"
	"testing"

	"github.com/dukerupert/stremify/internal/model"
)

func TestMovieCreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := "movies/abc.png"

	m, err := s.Movies.Create(ctx, &model.Movie{
		Title:       "Arrival",
		ReleaseYear: 2016,
		Duration:    116,
		Genres:      []string{"drama", "sci-fi"},
		Actors:      []string{"Amy Adams"},
		AdditionalInfo: &model.MovieInfo{
			OriginCountry: "US",
			Director:      "Denis Villeneuve",
		},
		ImageKey: &key,
	})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}
	if m.ID == 0 {
		t.Error("expected non-zero ID")
	}

	got, err := s.Movies.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if got.Title != "Arrival" {
		t.Errorf("title = %q, want %q", got.Title, "Arrival")
	}
	if len(got.Genres) != 2 || got.Genres[1] != "sci-fi" {
		t.Errorf("genres = %v", got.Genres)
	}
	if got.AdditionalInfo == nil || got.AdditionalInfo.Director != "Denis Villeneuve" {
		t.Errorf("additional info = %+v", got.AdditionalInfo)
	}
	if got.ImageKey == nil || *got.ImageKey != key {
		t.Errorf("image key = %v, want %q", got.ImageKey, key)
	}
}

func TestMovieListEmpty(t *testing.T) {
	s := setupTestStore(t)

	movies, err := s.Movies.List(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if movies == nil || len(movies) != 0 {
		t.Errorf("movies = %v, want empty slice", movies)
	}
}

func TestMovieListOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	s.Movies.Create(ctx, &model.Movie{Title: "First", ReleaseYear: 2000})
	s.Movies.Create(ctx, &model.Movie{Title: "Second", ReleaseYear: 2001})

	movies, err := s.Movies.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Second" {
		t.Errorf("movies = %+v, want [Second]", movies)
	}
}

func TestMovieGetNotFound(t *testing.T) {
	s := setupTestStore(t)
	m, err := s.Movies.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m != nil {
		t.Error("expected nil")
	}
}
