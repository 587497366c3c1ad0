package nodes

import (
	"slices"

	"github.com/google/uuid"
	"github.com/zachsents/minus-sub000/pkg/models"
)

// Instantiate creates a node with one instance per non-grouped interface and groupMin
// instances per grouped interface. Inputs start in their definition's default mode.
func Instantiate(definition *Definition) *models.Node {
	node := &models.Node{
		ID:         uuid.NewString(),
		Definition: definition.ID,
		Inputs:     []*models.InterfaceInstance{},
		Outputs:    []*models.InterfaceInstance{},
	}

	for _, id := range sortedKeys(definition.Inputs) {
		input := definition.Inputs[id]
		minimum, _ := input.Bounds()

		for range minimum {
			node.Inputs = append(node.Inputs, newInput(id, input))
		}
	}

	for _, id := range sortedKeys(definition.Outputs) {
		minimum, _ := definition.Outputs[id].Bounds()

		for range minimum {
			node.Outputs = append(node.Outputs, &models.InterfaceInstance{
				ID:         uuid.NewString(),
				Definition: id,
			})
		}
	}

	return node
}

func newInput(id string, definition models.InputDefinition) *models.InterfaceInstance {
	instance := &models.InterfaceInstance{
		ID:         uuid.NewString(),
		Definition: id,
		Mode:       definition.DefaultMode,
	}

	if definition.DefaultMode == models.ModeConfiguration {
		instance.Value = definition.Default
	}

	return instance
}

// CanAddInput reports whether another member of the grouped input fits under groupMax.
func CanAddInput(definition *Definition, node *models.Node, inputID string) bool {
	input, ok := definition.Inputs[inputID]
	if !ok || !input.Group {
		return false
	}

	_, maximum := input.Bounds()

	return len(node.InputsOf(inputID)) < maximum
}

// AddInput appends a member to a grouped input. It returns nil and leaves the node unchanged
// when the group is full.
func AddInput(definition *Definition, node *models.Node, inputID string) *models.InterfaceInstance {
	if !CanAddInput(definition, node, inputID) {
		return nil
	}

	instance := newInput(inputID, definition.Inputs[inputID])
	node.Inputs = append(node.Inputs, instance)

	return instance
}

// CanRemoveInput reports whether the instance belongs to a grouped input above groupMin.
func CanRemoveInput(definition *Definition, node *models.Node, instanceID string) bool {
	instance := findInstance(node.Inputs, instanceID)
	if instance == nil {
		return false
	}

	input, ok := definition.Inputs[instance.Definition]
	if !ok || !input.Group {
		return false
	}

	minimum, _ := input.Bounds()

	return len(node.InputsOf(instance.Definition)) > minimum
}

// RemoveInput removes a grouped input member. Removing below groupMin is a no-op.
func RemoveInput(definition *Definition, node *models.Node, instanceID string) bool {
	if !CanRemoveInput(definition, node, instanceID) {
		return false
	}

	node.Inputs = slices.DeleteFunc(node.Inputs, func(instance *models.InterfaceInstance) bool {
		return instance.ID == instanceID
	})

	return true
}

func CanAddOutput(definition *Definition, node *models.Node, outputID string) bool {
	output, ok := definition.Outputs[outputID]
	if !ok || !output.Group {
		return false
	}

	_, maximum := output.Bounds()

	return len(node.OutputsOf(outputID)) < maximum
}

func AddOutput(definition *Definition, node *models.Node, outputID string) *models.InterfaceInstance {
	if !CanAddOutput(definition, node, outputID) {
		return nil
	}

	instance := &models.InterfaceInstance{ID: uuid.NewString(), Definition: outputID}
	node.Outputs = append(node.Outputs, instance)

	return instance
}

func CanRemoveOutput(definition *Definition, node *models.Node, instanceID string) bool {
	instance := findInstance(node.Outputs, instanceID)
	if instance == nil {
		return false
	}

	output, ok := definition.Outputs[instance.Definition]
	if !ok || !output.Group {
		return false
	}

	minimum, _ := output.Bounds()

	return len(node.OutputsOf(instance.Definition)) > minimum
}

func RemoveOutput(definition *Definition, node *models.Node, instanceID string) bool {
	if !CanRemoveOutput(definition, node, instanceID) {
		return false
	}

	node.Outputs = slices.DeleteFunc(node.Outputs, func(instance *models.InterfaceInstance) bool {
		return instance.ID == instanceID
	})

	return true
}

func findInstance(instances []*models.InterfaceInstance, id string) *models.InterfaceInstance {
	for _, instance := range instances {
		if instance.ID == id {
			return instance
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
