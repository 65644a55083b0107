package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/ranking"
	"github.com/meur/cinerank/internal/shared"
)

// ListItems returns a list's items ordered by rank, then insertion order.
// Title and poster come from the catalog when the entry still exists and
// from the item's own snapshot otherwise.
func (s *Store) ListItems(ctx context.Context, listID string) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT li.id, li.list_id, li.movie_id,
			COALESCE(m.title, li.title), COALESCE(m.poster_path, li.poster_path, ''),
			li.rank, COALESCE(li.comment, '')
		FROM list_items li
		LEFT JOIN movies m ON m.id = li.movie_id
		WHERE li.list_id = ?
		ORDER BY li.rank, li.rowid
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		err := rows.Scan(&item.ID, &item.ListID, &item.Movie.ID, &item.Movie.Title,
			&item.Movie.PosterPath, &item.Rank, &item.Comment)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// AddItem appends item to the list at MAX(rank)+1 and records the movie in
// the catalog if it is not there yet. item.Rank and item.ListID are set
// from what was stored.
func (s *Store) AddItem(ctx context.Context, listID string, item *models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchList(ctx, tx, listID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO movies (id, title, poster_path) VALUES (?, ?, NULLIF(?, ''))
		ON CONFLICT(id) DO NOTHING
	`, item.Movie.ID, item.Movie.Title, item.Movie.PosterPath)
	if err != nil {
		return fmt.Errorf("failed to record movie: %w", err)
	}

	var rank int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(rank), 0) + 1 FROM list_items WHERE list_id = ?`, listID,
	).Scan(&rank)
	if err != nil {
		return fmt.Errorf("failed to compute rank: %w", err)
	}

	if item.ID == "" {
		item.ID = shared.GenerateID()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO list_items (id, list_id, movie_id, title, poster_path, rank, comment)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''))
	`, item.ID, listID, item.Movie.ID, item.Movie.Title, item.Movie.PosterPath, rank, item.Comment)
	if isDuplicateKey(err) {
		// Item ids are global, so a proposed id may already belong to another list.
		return shared.Invalid("id", "already used")
	}
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item: %w", err)
	}

	item.ListID = listID
	item.Rank = rank
	return nil
}

// RemoveItem deletes an item and moves every item ranked after it up by
// one, in the same transaction.
func (s *Store) RemoveItem(ctx context.Context, listID, itemID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rank int
	err = tx.QueryRowContext(ctx,
		`SELECT rank FROM list_items WHERE id = ? AND list_id = ?`, itemID, listID,
	).Scan(&rank)
	if err == sql.ErrNoRows {
		return shared.NotFound("item", itemID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE list_items SET rank = rank - 1 WHERE list_id = ? AND rank > ?`, listID, rank)
	if err != nil {
		return fmt.Errorf("failed to renumber items: %w", err)
	}
	if err := touchList(ctx, tx, listID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateItemComment sets an item's comment; an empty comment is stored as NULL
func (s *Store) UpdateItemComment(ctx context.Context, listID, itemID, comment string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE list_items SET comment = NULLIF(?, '') WHERE id = ? AND list_id = ?`,
		comment, itemID, listID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return expectOne(result, "item", itemID)
}

// ReorderItems overwrites every rank of the list from a complete mapping.
// The mapping is checked against the stored items first, so a partial or
// duplicate-rank state is never written.
func (s *Store) ReorderItems(ctx context.Context, listID string, mapping []models.RankUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchList(ctx, tx, listID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM list_items WHERE list_id = ?`, listID)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan item: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	if err := ranking.CheckMapping(ids, mapping); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE list_items SET rank = ? WHERE id = ? AND list_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare reorder: %w", err)
	}
	defer stmt.Close()

	for _, m := range mapping {
		if _, err := stmt.ExecContext(ctx, m.Rank, m.ID, listID); err != nil {
			return fmt.Errorf("failed to set rank of %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}
