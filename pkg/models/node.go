package models

// InterfaceInstance is one input or output slot on a node placed in the editor.
type InterfaceInstance struct {
	ID          string           `json:"id"`
	Definition  string           `json:"definition"`
	Mode        PresentationMode `json:"mode,omitempty"`
	Value       any              `json:"value,omitempty"`
	Hidden      bool             `json:"hidden,omitempty"`
	Name        string           `json:"name,omitempty"`
	DerivedFrom string           `json:"derivedFrom,omitempty"`
}

// Node is an instance of a NodeDefinition.
type Node struct {
	ID         string               `json:"id"`
	Definition string               `json:"definition"`
	Inputs     []*InterfaceInstance `json:"inputs"`
	Outputs    []*InterfaceInstance `json:"outputs"`
}

// InputsOf returns the node's input instances created from the given input definition.
func (n *Node) InputsOf(definitionID string) []*InterfaceInstance {
	var matched []*InterfaceInstance

	for _, input := range n.Inputs {
		if input.Definition == definitionID {
			matched = append(matched, input)
		}
	}

	return matched
}

func (n *Node) OutputsOf(definitionID string) []*InterfaceInstance {
	var matched []*InterfaceInstance

	for _, output := range n.Outputs {
		if output.Definition == definitionID {
			matched = append(matched, output)
		}
	}

	return matched
}
