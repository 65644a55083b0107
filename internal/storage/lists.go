package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

const listColumns = `id, owner_id, name, private_id, public_id, created_at, updated_at`

// CreateList creates a new list owned by ownerID with fresh private and public tokens
func (s *Store) CreateList(ctx context.Context, ownerID, name string) (*models.List, error) {
	now := time.Now().UTC()
	l := &models.List{
		ID:        shared.GenerateID(),
		Name:      name,
		OwnerID:   ownerID,
		PrivateID: shared.GenerateToken(),
		PublicID:  shared.GenerateToken(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for l.PublicID == l.PrivateID {
		l.PublicID = shared.GenerateToken()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lists (id, owner_id, name, private_id, public_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.OwnerID, l.Name, l.PrivateID, l.PublicID, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert list: %w", err)
	}

	return l, nil
}

// GetList returns a list by ID
func (s *Store) GetList(ctx context.Context, id string) (*models.List, error) {
	return s.getListWhere(ctx, "id", id)
}

// GetListByPrivateID returns the list whose owner token is token
func (s *Store) GetListByPrivateID(ctx context.Context, token string) (*models.List, error) {
	return s.getListWhere(ctx, "private_id", token)
}

// GetListByPublicID returns the list whose share token is token
func (s *Store) GetListByPublicID(ctx context.Context, token string) (*models.List, error) {
	return s.getListWhere(ctx, "public_id", token)
}

// getListWhere looks a list up by one of its unique columns. column is
// never user input.
func (s *Store) getListWhere(ctx context.Context, column, value string) (*models.List, error) {
	var l models.List
	err := s.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM lists WHERE `+column+` = ?`, value,
	).Scan(&l.ID, &l.OwnerID, &l.Name, &l.PrivateID, &l.PublicID, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list: %w", err)
	}
	return &l, nil
}

// ListsByOwner returns the owner's lists in creation order with item counts
func (s *Store) ListsByOwner(ctx context.Context, ownerID string) ([]models.ListSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.name, l.private_id, l.public_id, l.created_at, COUNT(li.id)
		FROM lists l
		LEFT JOIN list_items li ON li.list_id = l.id
		WHERE l.owner_id = ?
		GROUP BY l.id
		ORDER BY l.created_at, l.rowid
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	summaries := []models.ListSummary{}
	for rows.Next() {
		var ls models.ListSummary
		if err := rows.Scan(&ls.ID, &ls.Name, &ls.PrivateID, &ls.PublicID, &ls.CreatedAt, &ls.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		summaries = append(summaries, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return summaries, nil
}

// RenameList updates a list's name
func (s *Store) RenameList(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE lists SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename list: %w", err)
	}
	return expectOne(result, "list", id)
}

// DeleteList deletes a list; its items go with it through the cascade
func (s *Store) DeleteList(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return expectOne(result, "list", id)
}

func expectOne(result sql.Result, resource, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return shared.NotFound(resource, id)
	}
	return nil
}

func touchList(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `UPDATE lists SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch list: %w", err)
	}
	return expectOne(result, "list", id)
}
