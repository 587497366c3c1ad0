// Package file provides file-based persistence for development and tests.
// Every document is a JSON file under <root>/<collection>/<id>.json. A single lock
// serializes writers, which makes guarded transitions and batches atomic within one process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zachsents/minus-sub000/pkg/persistence"
)

const (
	triggersCollection      = "triggers"
	runsCollection          = "workflow_runs"
	workflowsCollection     = "workflows"
	organizationsCollection = "organizations"
	usersCollection         = "users"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file persistence rooted at root. A file:// prefix is accepted.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

func (p *Persistence) Triggers() persistence.TriggerRepository {
	return &triggerRepository{p: p}
}

func (p *Persistence) WorkflowRuns() persistence.WorkflowRunRepository {
	return &runRepository{p: p}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{p: p}
}

func (p *Persistence) Organizations() persistence.OrganizationRepository {
	return &organizationRepository{p: p}
}

func (p *Persistence) Users() persistence.UserRepository {
	return &userRepository{p: p}
}

// HealthCheck checks that the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) path(collection, id string) string {
	return filepath.Join(p.root, collection, id+".json")
}

// read loads one document. It returns false when the document does not exist.
func read[T any](p *Persistence, collection, id string) (*T, bool, error) {
	data, err := os.ReadFile(p.path(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}

	var document T

	err = json.Unmarshal(data, &document)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}

	return &document, true, nil
}

func write(p *Persistence, collection, id string, document any) error {
	dir := filepath.Join(p.root, collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}

	return os.Rename(tmp.Name(), p.path(collection, id))
}

func remove(p *Persistence, collection, id string) error {
	err := os.Remove(p.path(collection, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return nil
}

func list[T any](p *Persistence, collection string) ([]*T, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(p.root, collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	documents := make([]*T, 0, len(files))

	for _, file := range files {
		document, ok, err := read[T](p, collection, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if ok {
			documents = append(documents, document)
		}
	}

	return documents, nil
}
