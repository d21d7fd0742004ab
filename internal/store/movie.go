package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/stremify/internal/model"
)

type MovieStore struct {
	db DBTX
}

func NewMovieStore(db DBTX) *MovieStore {
	return &MovieStore{db: db}
}

func scanMovie(scanner interface{ Scan(...any) error }) (*model.Movie, error) {
	var m model.Movie
	var genres, actors string
	var info, imageKey sql.NullString

	err := scanner.Scan(
		&m.ID, &m.Title, &m.ReleaseYear, &m.Duration, &m.Synopsis, &m.AgeRating,
		&genres, &actors, &m.Warnings, &info, &imageKey, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(genres), &m.Genres); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	if err := json.Unmarshal([]byte(actors), &m.Actors); err != nil {
		return nil, fmt.Errorf("decode actors: %w", err)
	}
	if info.Valid {
		m.AdditionalInfo = &model.MovieInfo{}
		if err := json.Unmarshal([]byte(info.String), m.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("decode additional info: %w", err)
		}
	}
	m.ImageKey = stringPtr(imageKey)
	return &m, nil
}

const movieCols = `id, title, release_year, duration, synopsis, age_rating,
	genres, actors, warnings, additional_info, image_key, created_at, updated_at`

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func (s *MovieStore) Create(ctx context.Context, m *model.Movie) (*model.Movie, error) {
	genres, err := encodeList(m.Genres)
	if err != nil {
		return nil, fmt.Errorf("encode genres: %w", err)
	}
	actors, err := encodeList(m.Actors)
	if err != nil {
		return nil, fmt.Errorf("encode actors: %w", err)
	}
	var info sql.NullString
	if m.AdditionalInfo != nil {
		b, err := json.Marshal(m.AdditionalInfo)
		if err != nil {
			return nil, fmt.Errorf("encode additional info: %w", err)
		}
		info = sql.NullString{String: string(b), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO movies (title, release_year, duration, synopsis, age_rating, genres, actors, warnings, additional_info, image_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Title, m.ReleaseYear, m.Duration, m.Synopsis, m.AgeRating,
		genres, actors, m.Warnings, info, nullString(m.ImageKey),
	)
	if err != nil {
		return nil, fmt.Errorf("insert movie: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MovieStore) GetByID(ctx context.Context, id int64) (*model.Movie, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movieCols+` FROM movies WHERE id = ?`, id)
	m, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

// List returns movies newest first.
func (s *MovieStore) List(ctx context.Context, limit, offset int) ([]model.Movie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+movieCols+` FROM movies ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	movies := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}

func (s *MovieStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	return nil
}
