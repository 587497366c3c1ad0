// Package nodes implements the interface model of a node: instantiation from a definition,
// group membership, input validation and derived inputs.
package nodes

import (
	"github.com/zachsents/minus-sub000/pkg/models"
)

// An input hook is any value bound to one input definition. It opts into behavior by
// implementing some of the interfaces below. A hook that implements none of them is inert.

// InputValidator checks an input against its siblings, whatever its presentation mode.
type InputValidator interface {
	ValidateInput(input *models.InterfaceInstance, siblings []*models.InterfaceInstance) error
}

// ConfigurationValidator checks the fixed value of an input in configuration mode.
type ConfigurationValidator interface {
	ValidateConfiguration(value any) error
}

// InputDeriver produces input templates in response to a configuration change.
type InputDeriver interface {
	DeriveInputs(input *models.InterfaceInstance) []DerivedInput
}

// Describer supplies a description computed from the current input state.
type Describer interface {
	Describe(input *models.InterfaceInstance) string
}

// MergeKey names an instance field used to match a derived input with an existing instance.
type MergeKey string

const (
	MergeDefinition  MergeKey = "definition"
	MergeName        MergeKey = "name"
	MergeDerivedFrom MergeKey = "derivedFrom"
	MergeValue       MergeKey = "value"
)

// DerivedInput is a template for an input instance produced by an InputDeriver.
// An existing instance equal on every Merge key is updated in place, otherwise a new one is
// added subject to the group capacity of Definition.
type DerivedInput struct {
	Definition string
	Name       string
	Mode       models.PresentationMode
	Value      any
	Hidden     bool
	Merge      []MergeKey
}

// Definition is a node definition with its input hooks bound.
type Definition struct {
	models.NodeDefinition

	hooks map[string]any
}

func NewDefinition(definition models.NodeDefinition, hooks map[string]any) *Definition {
	bound := make(map[string]any, len(hooks))
	for inputID, hook := range hooks {
		bound[inputID] = hook
	}

	return &Definition{
		NodeDefinition: definition,
		hooks:          bound,
	}
}

// Hook returns the hook bound to the input definition, or nil.
func (d *Definition) Hook(inputID string) any {
	return d.hooks[inputID]
}
