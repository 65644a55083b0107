package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

// GetMovie returns a catalog entry by ID
func (s *Store) GetMovie(ctx context.Context, id int64) (*models.Movie, error) {
	var m models.Movie
	var poster sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, poster_path FROM movies WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &poster)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch movie: %w", err)
	}
	m.PosterPath = poster.String
	return &m, nil
}

// BulkUpsertMovies creates or refreshes catalog entries in a transaction.
// It reports how many rows were new.
func (s *Store) BulkUpsertMovies(ctx context.Context, movies []models.Movie) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var before int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&before); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movies (id, title, poster_path) VALUES (?, ?, NULLIF(?, ''))
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, poster_path = excluded.poster_path
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, m := range movies {
		if m.ID <= 0 || m.Title == "" {
			return 0, shared.Invalid("movie", fmt.Sprintf("id and title are required (got %d %q)", m.ID, m.Title))
		}
		if _, err := stmt.ExecContext(ctx, m.ID, m.Title, m.PosterPath); err != nil {
			return 0, err
		}
	}

	var after int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&after); err != nil {
		return 0, err
	}

	return after - before, tx.Commit()
}

// DeleteMovie removes a catalog entry. List items referencing it keep
// their snapshot and their rank.
func (s *Store) DeleteMovie(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}
	return expectOne(result, "movie", fmt.Sprint(id))
}
