// Package texttemplate provides the input hooks of the text.template node.
package texttemplate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/nodes"
)

const (
	DefinitionID       = "text.template"
	InputTemplate      = "template"
	InputSubstitutions = "substitutions"
)

var (
	ErrNotText             = errors.New("template must be text")
	ErrUnclosedPlaceholder = errors.New("template has an unclosed placeholder")

	placeholderPattern = regexp.MustCompile(`\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}`)
)

// Hooks returns the input hooks keyed by input definition id.
func Hooks() map[string]any {
	return map[string]any{
		InputTemplate:      templateHook{},
		InputSubstitutions: substitutionHook{},
	}
}

type templateHook struct{}

func (templateHook) ValidateConfiguration(value any) error {
	text, ok := value.(string)
	if !ok {
		if value == nil {
			return nil
		}

		return ErrNotText
	}

	if strings.Count(text, "{") != strings.Count(text, "}") {
		return ErrUnclosedPlaceholder
	}

	return nil
}

// DeriveInputs creates one substitution input per distinct placeholder, matched by name.
func (templateHook) DeriveInputs(input *models.InterfaceInstance) []nodes.DerivedInput {
	text, ok := input.Value.(string)
	if !ok {
		return nil
	}

	var derived []nodes.DerivedInput

	seen := map[string]bool{}

	for _, name := range Placeholders(text) {
		if seen[name] {
			continue
		}

		seen[name] = true
		derived = append(derived, nodes.DerivedInput{
			Definition: InputSubstitutions,
			Name:       name,
			Mode:       models.ModeHandle,
			Merge:      []nodes.MergeKey{nodes.MergeDefinition, nodes.MergeName},
		})
	}

	return derived
}

// Placeholders returns the placeholder names of text in order of appearance.
func Placeholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)

	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match[1])
	}

	return names
}

type substitutionHook struct{}

func (substitutionHook) Describe(input *models.InterfaceInstance) string {
	if input.Name == "" {
		return ""
	}

	return fmt.Sprintf("Value inserted for {%s}", input.Name)
}
