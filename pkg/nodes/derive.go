package nodes

import (
	"reflect"

	"github.com/zachsents/minus-sub000/pkg/models"
)

// DeriveInputs runs the InputDeriver hook of the input and applies its templates to the node.
// It returns the instances that were created or updated. Templates that would exceed the
// target group's groupMax are dropped.
func DeriveInputs(definition *Definition, node *models.Node, input *models.InterfaceInstance) []*models.InterfaceInstance {
	deriver, ok := definition.Hook(input.Definition).(InputDeriver)
	if !ok {
		return nil
	}

	var touched []*models.InterfaceInstance

	for _, template := range deriver.DeriveInputs(input) {
		if existing := findDerivedMatch(node, input, template); existing != nil {
			applyDerived(existing, template)
			touched = append(touched, existing)

			continue
		}

		created := AddInput(definition, node, template.Definition)
		if created == nil {
			continue
		}

		created.DerivedFrom = input.ID
		applyDerived(created, template)
		touched = append(touched, created)
	}

	return touched
}

func findDerivedMatch(node *models.Node, source *models.InterfaceInstance, template DerivedInput) *models.InterfaceInstance {
	if len(template.Merge) == 0 {
		return nil
	}

	for _, candidate := range node.Inputs {
		if matchesAll(candidate, source, template) {
			return candidate
		}
	}

	return nil
}

func matchesAll(candidate, source *models.InterfaceInstance, template DerivedInput) bool {
	for _, key := range template.Merge {
		switch key {
		case MergeDefinition:
			if candidate.Definition != template.Definition {
				return false
			}
		case MergeName:
			if candidate.Name != template.Name {
				return false
			}
		case MergeDerivedFrom:
			if candidate.DerivedFrom != source.ID {
				return false
			}
		case MergeValue:
			if !reflect.DeepEqual(candidate.Value, template.Value) {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// applyDerived copies the template onto the instance. A configured value is kept unless
// the template carries one.
func applyDerived(instance *models.InterfaceInstance, template DerivedInput) {
	instance.Name = template.Name
	instance.Hidden = template.Hidden

	if template.Mode != "" {
		instance.Mode = template.Mode
	}

	if template.Value != nil {
		instance.Value = template.Value
	}
}
