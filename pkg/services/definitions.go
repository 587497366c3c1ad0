package services

import (
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/nodes"
	"github.com/zachsents/minus-sub000/pkg/registry"
)

// Definitions serves the node catalog to the editor.
type Definitions struct {
	registry *registry.Registry
}

func NewDefinitions(reg *registry.Registry) *Definitions {
	return &Definitions{registry: reg}
}

func (s *Definitions) List() []models.NodeDefinition {
	all := s.registry.Definitions()

	definitions := make([]models.NodeDefinition, 0, len(all))
	for _, definition := range all {
		definitions = append(definitions, definition.NodeDefinition)
	}

	return definitions
}

func (s *Definitions) Get(id string) (*models.NodeDefinition, error) {
	definition, err := s.registry.Definition(id)
	if err != nil {
		return nil, err
	}

	return &definition.NodeDefinition, nil
}

func (s *Definitions) Instantiate(id string) (*models.Node, error) {
	return s.registry.Instantiate(id)
}

// Validate checks every input of node against its definition. The node's own definition
// field is ignored in favour of id.
func (s *Definitions) Validate(id string, node *models.Node) ([]*nodes.ValidationError, error) {
	definition, err := s.registry.Definition(id)
	if err != nil {
		return nil, err
	}

	return nodes.ValidateNode(definition, node), nil
}

func (s *Definitions) HealthCheck() (string, bool) {
	return s.registry.HealthCheck()
}
