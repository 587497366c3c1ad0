// Package registry builds the immutable catalog of node definitions.
package registry

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/nodes"
)

var ErrDefinitionNotFound = errors.New("node definition not found")

//go:embed catalog/*.yaml
var embedded embed.FS

// Hooks binds input hooks by definition id, then input id.
type Hooks map[string]map[string]any

// Registry is the merged node catalog. It is built once and never mutated.
type Registry struct {
	logger      *slog.Logger
	definitions map[string]*nodes.Definition
	ids         []string
}

// New merges base with overlay and binds hooks. Hooks naming an unknown definition or
// input are rejected.
func New(logger *slog.Logger, base, overlay *Catalog, hooks Hooks) (*Registry, error) {
	merged, err := MergeDefinitions(base, overlay)
	if err != nil {
		return nil, err
	}

	definitions := make(map[string]*nodes.Definition, len(merged))

	for id, definition := range merged {
		definitions[id] = nodes.NewDefinition(definition, hooks[id])
	}

	for definitionID, inputHooks := range hooks {
		definition, ok := definitions[definitionID]
		if !ok {
			return nil, fmt.Errorf("hooks bound to unknown definition %s: %w", definitionID, ErrDefinitionNotFound)
		}

		for inputID := range inputHooks {
			if _, ok := definition.Inputs[inputID]; !ok {
				return nil, fmt.Errorf("hook bound to unknown input %s of %s: %w", inputID, definitionID, nodes.ErrUnknownInput)
			}
		}
	}

	logger.Info("Node definitions loaded", "count", len(definitions))

	return &Registry{
		logger:      logger,
		definitions: definitions,
		ids:         slices.Sorted(maps.Keys(definitions)),
	}, nil
}

// NewDefault builds the registry from the embedded catalogs and the built-in hooks.
func NewDefault(logger *slog.Logger) (*Registry, error) {
	return Load(logger, "", "")
}

// Load builds the registry from catalog files. An empty path selects the embedded catalog.
func Load(logger *slog.Logger, basePath, overlayPath string) (*Registry, error) {
	base, err := readCatalog(basePath, "catalog/base.yaml")
	if err != nil {
		return nil, err
	}

	overlay, err := readCatalog(overlayPath, "catalog/web.yaml")
	if err != nil {
		return nil, err
	}

	return New(logger, base, overlay, DefaultHooks())
}

func readCatalog(path, fallback string) (*Catalog, error) {
	var (
		data []byte
		err  error
	)

	if path == "" {
		data, err = embedded.ReadFile(fallback)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	return ParseCatalog(data)
}

// Definition returns the definition with the given id.
func (r *Registry) Definition(id string) (*nodes.Definition, error) {
	definition, ok := r.definitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
	}

	return definition, nil
}

// Definitions returns every definition ordered by id.
func (r *Registry) Definitions() []*nodes.Definition {
	definitions := make([]*nodes.Definition, 0, len(r.ids))
	for _, id := range r.ids {
		definitions = append(definitions, r.definitions[id])
	}

	return definitions
}

// Instantiate creates a fresh node of the given kind.
func (r *Registry) Instantiate(id string) (*models.Node, error) {
	definition, err := r.Definition(id)
	if err != nil {
		return nil, err
	}

	return nodes.Instantiate(definition), nil
}

func (r *Registry) HealthCheck() (string, bool) {
	if len(r.definitions) == 0 {
		return "No node definitions loaded", false
	}

	return fmt.Sprintf("%d node definitions loaded", len(r.definitions)), true
}

// IsDefinitionNotFound checks if an error indicates an unknown node definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}
