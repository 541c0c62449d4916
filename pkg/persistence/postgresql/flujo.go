package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
)

// FlujoRepository stores flujos in the flujos table.
type FlujoRepository struct {
	db *sql.DB
}

// Save upserts the flujo.
func (r *FlujoRepository) Save(ctx context.Context, flujo *models.Flujo) error {
	document, err := json.Marshal(flujo)
	if err != nil {
		return fmt.Errorf("failed to marshal flujo %s: %w", flujo.ID, err)
	}

	query := `
		INSERT INTO flujos (id, status, created_at, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			document = EXCLUDED.document`

	_, err = r.db.ExecContext(ctx, query, flujo.ID, string(flujo.Status), flujo.CreatedAt, document)
	if err != nil {
		return persistence.NewFlujoError("Save", flujo.ID, err)
	}

	return nil
}

// GetByID returns the flujo or an ErrFlujoNotFound error.
func (r *FlujoRepository) GetByID(ctx context.Context, id string) (*models.Flujo, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, "SELECT document FROM flujos WHERE id = $1", id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlujoNotFound
		}

		return nil, persistence.NewFlujoError("GetByID", id, err)
	}

	return decodeFlujo(document)
}

// Exists reports whether the flujo is stored.
func (r *FlujoRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM flujos WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, persistence.NewFlujoError("Exists", id, err)
	}

	return exists, nil
}

// Delete removes the flujo; a missing flujo is not an error.
func (r *FlujoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM flujos WHERE id = $1", id)
	if err != nil {
		return persistence.NewFlujoError("Delete", id, err)
	}

	return nil
}

// List returns one page of flujos, newest first.
func (r *FlujoRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Flujo, error) {
	query := "SELECT document FROM flujos ORDER BY created_at DESC, id DESC OFFSET $1"
	args := []any{max(opts.Offset, 0)}

	if opts.Limit > 0 {
		query += " LIMIT $2"

		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flujos: %w", err)
	}
	defer rows.Close()

	flujos := make([]*models.Flujo, 0)

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan flujo: %w", err)
		}

		flujo, err := decodeFlujo(document)
		if err != nil {
			return nil, err
		}

		flujos = append(flujos, flujo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flujos: %w", err)
	}

	return flujos, nil
}

func decodeFlujo(document []byte) (*models.Flujo, error) {
	var flujo models.Flujo

	if err := json.Unmarshal(document, &flujo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flujo: %w", err)
	}

	return &flujo, nil
}
