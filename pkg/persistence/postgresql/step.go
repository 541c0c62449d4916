package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// StepRepository stores one step kind in the shared flujo_steps table.
type StepRepository[T models.Step] struct {
	db   *sql.DB
	kind models.StepType
}

// Save upserts the record. A second record for the same flujo breaks the
// (kind, flujo_id) constraint and is reported as persistence.ErrStepAlreadyExists.
func (r *StepRepository[T]) Save(ctx context.Context, step T) error {
	document, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("failed to marshal %s step %s: %w", r.kind, step.StepID(), err)
	}

	query := `
		INSERT INTO flujo_steps (kind, id, flujo_id, document, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, id) DO UPDATE SET
			flujo_id = EXCLUDED.flujo_id,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query, string(r.kind), step.StepID(), step.StepFlujoID(), document, step.StepCreatedAt().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewStepError("Save", string(r.kind), step.StepFlujoID(), persistence.ErrStepAlreadyExists)
		}

		return persistence.NewStepError("Save", string(r.kind), step.StepFlujoID(), err)
	}

	return nil
}

func (r *StepRepository[T]) queryOne(ctx context.Context, op, flujoID, column, value string) (T, error) {
	var (
		document []byte
		step     T
	)

	query := "SELECT document FROM flujo_steps WHERE kind = $1 AND " + column + " = $2"

	err := r.db.QueryRowContext(ctx, query, string(r.kind), value).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return step, persistence.NewStepError(op, string(r.kind), flujoID, persistence.ErrStepNotFound)
		}

		return step, fmt.Errorf("failed to query %s step: %w", r.kind, err)
	}

	if err := json.Unmarshal(document, &step); err != nil {
		return step, fmt.Errorf("failed to unmarshal %s step: %w", r.kind, err)
	}

	return step, nil
}

// GetByID returns the record or an ErrStepNotFound error.
func (r *StepRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	return r.queryOne(ctx, "GetByID", "", "id", id)
}

// GetByFlujoID returns the flujo's record or an ErrStepNotFound error.
func (r *StepRepository[T]) GetByFlujoID(ctx context.Context, flujoID string) (T, error) {
	return r.queryOne(ctx, "GetByFlujoID", flujoID, "flujo_id", flujoID)
}

// Exists reports whether the record is stored.
func (r *StepRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM flujo_steps WHERE kind = $1 AND id = $2)", string(r.kind), id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s step %s: %w", r.kind, id, err)
	}

	return exists, nil
}

// Delete removes the record; a missing record is not an error.
func (r *StepRepository[T]) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM flujo_steps WHERE kind = $1 AND id = $2", string(r.kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s step %s: %w", r.kind, id, err)
	}

	return nil
}
