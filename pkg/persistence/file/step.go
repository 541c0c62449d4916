package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
)

// StepRepository stores one step kind as JSON documents under <root>/<dir>.
type StepRepository[T models.Step] struct {
	root string
	dir  string
	kind models.StepType
	mu   *sync.RWMutex
}

func (sr *StepRepository[T]) path(id string) string {
	return filepath.Clean(path.Join(sr.root, sr.dir, id+".json"))
}

// GetByID returns the step record with the given ID.
func (sr *StepRepository[T]) GetByID(_ context.Context, id string) (T, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	step, found, err := sr.read(id)
	if err == nil && !found {
		err = sr.notFound("GetByID", "")
	}

	return step, err
}

func (sr *StepRepository[T]) notFound(op, flujoID string) error {
	return persistence.NewStepError(op, string(sr.kind), flujoID, persistence.ErrStepNotFound)
}

func (sr *StepRepository[T]) read(id string) (T, bool, error) {
	var step T

	if !validID(id) {
		return step, false, nil
	}

	body, err := os.ReadFile(sr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return step, false, nil
		}

		return step, false, fmt.Errorf("failed to read %s step %s: %w", sr.kind, id, err)
	}

	err = json.Unmarshal(body, &step)
	if err != nil {
		return step, false, fmt.Errorf("failed to unmarshal %s step %s: %w", sr.kind, id, err)
	}

	return step, true, nil
}

// GetByFlujoID returns the step record owned by the flujo.
func (sr *StepRepository[T]) GetByFlujoID(_ context.Context, flujoID string) (T, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	step, found, err := sr.findByFlujoID(flujoID)
	if err == nil && !found {
		err = sr.notFound("GetByFlujoID", flujoID)
	}

	return step, err
}

func (sr *StepRepository[T]) findByFlujoID(flujoID string) (T, bool, error) {
	var zero T

	jsonFiles, err := fs.Glob(os.DirFS(path.Join(sr.root, sr.dir)), "*.json")
	if err != nil {
		return zero, false, fmt.Errorf("failed to list %s step files: %w", sr.kind, err)
	}

	for _, file := range jsonFiles {
		step, found, err := sr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return zero, false, err
		}

		if found && step.StepFlujoID() == flujoID {
			return step, true, nil
		}
	}

	return zero, false, nil
}

// Exists reports whether a step record with the given ID is stored.
func (sr *StepRepository[T]) Exists(_ context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	sr.mu.RLock()
	defer sr.mu.RUnlock()

	_, err := os.Stat(sr.path(id))
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("failed to stat %s step %s: %w", sr.kind, id, err)
}

// Save creates or replaces a step record. A flujo holds at most one record of
// each kind, so saving a second ID for the same flujo fails.
func (sr *StepRepository[T]) Save(_ context.Context, step T) error {
	if !validID(step.StepID()) {
		return persistence.NewStepError("Save", string(sr.kind), step.StepFlujoID(), fs.ErrInvalid)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	existing, found, err := sr.findByFlujoID(step.StepFlujoID())
	if err != nil {
		return err
	}

	if found && existing.StepID() != step.StepID() {
		return persistence.NewStepError("Save", string(sr.kind), step.StepFlujoID(), persistence.ErrStepAlreadyExists)
	}

	err = os.MkdirAll(path.Join(sr.root, sr.dir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", sr.dir, err)
	}

	data, err := json.MarshalIndent(step, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s step %s: %w", sr.kind, step.StepID(), err)
	}

	return writeFile(sr.path(step.StepID()), data)
}

// Delete removes a step record by its ID. Removing a missing record is not an error.
func (sr *StepRepository[T]) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return nil
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	err := os.Remove(sr.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s step %s: %w", sr.kind, id, err)
	}

	return nil
}
