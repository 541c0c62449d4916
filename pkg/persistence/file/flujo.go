package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
)

// FlujoRepository handles flujo documents under <root>/flujos.
type FlujoRepository struct {
	root string
	mu   *sync.RWMutex
}

func (fr *FlujoRepository) dir() string {
	return path.Join(fr.root, "flujos")
}

// GetByID returns a flujo by its ID.
func (fr *FlujoRepository) GetByID(_ context.Context, id string) (*models.Flujo, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	flujo, err := fr.read(id)
	if err != nil {
		return nil, err
	}

	if flujo == nil {
		return nil, persistence.NewFlujoError("GetByID", id, persistence.ErrFlujoNotFound)
	}

	return flujo, nil
}

func (fr *FlujoRepository) read(id string) (*models.Flujo, error) {
	if !validID(id) {
		return nil, nil
	}

	body, err := os.ReadFile(filepath.Clean(path.Join(fr.dir(), id+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewFlujoError("GetByID", id, err)
	}

	var flujo models.Flujo

	err = json.Unmarshal(body, &flujo)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal flujo %s: %w", id, err)
	}

	return &flujo, nil
}

// Exists reports whether a flujo with the given ID is stored.
func (fr *FlujoRepository) Exists(_ context.Context, id string) (bool, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	flujo, err := fr.read(id)
	if err != nil {
		return false, err
	}

	return flujo != nil, nil
}

// Save creates or replaces a flujo document.
func (fr *FlujoRepository) Save(_ context.Context, flujo *models.Flujo) error {
	if !validID(flujo.ID) {
		return persistence.NewFlujoError("Save", flujo.ID, fs.ErrInvalid)
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()

	err := os.MkdirAll(fr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create flujos directory: %w", err)
	}

	data, err := json.MarshalIndent(flujo, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flujo %s: %w", flujo.ID, err)
	}

	return writeFile(path.Join(fr.dir(), flujo.ID+".json"), data)
}

// Delete removes a flujo by its ID. Removing a missing flujo is not an error.
func (fr *FlujoRepository) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return nil
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()

	err := os.Remove(path.Join(fr.dir(), id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return persistence.NewFlujoError("Delete", id, err)
	}

	return nil
}

// List returns one page of flujos, newest first.
func (fr *FlujoRepository) List(_ context.Context, opts persistence.ListOptions) ([]*models.Flujo, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(fr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list flujo files: %w", err)
	}

	flujos := make([]*models.Flujo, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		flujo, err := fr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if flujo != nil {
			flujos = append(flujos, flujo)
		}
	}

	sort.Slice(flujos, func(i, j int) bool {
		if flujos[i].CreatedAt.Equal(flujos[j].CreatedAt) {
			return flujos[i].ID > flujos[j].ID
		}

		return flujos[i].CreatedAt.After(flujos[j].CreatedAt)
	})

	return paginate(flujos, opts), nil
}

func paginate(flujos []*models.Flujo, opts persistence.ListOptions) []*models.Flujo {
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	if opts.Offset >= len(flujos) {
		return []*models.Flujo{}
	}

	end := len(flujos)
	if opts.Limit > 0 && opts.Offset+opts.Limit < end {
		end = opts.Offset + opts.Limit
	}

	return flujos[opts.Offset:end]
}

// validID rejects identifiers that would escape the store directory.
func validID(id string) bool {
	return id != "" && fs.ValidPath(id) && !strings.ContainsAny(id, `/\`)
}

// writeFile replaces the file at name through a rename so readers never see a partial document.
func writeFile(name string, data []byte) error {
	tmp := name + ".tmp"

	err := os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	err = os.Rename(tmp, name)
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}
