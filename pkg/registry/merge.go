package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/zachsents/minus-sub000/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownOverlayDefinition = errors.New("overlay names a definition missing from the base catalog")
	ErrInvalidDefinition        = errors.New("invalid node definition")
)

// Catalog is one layer of node definitions: shared defaults plus per definition documents keyed by id.
type Catalog struct {
	Defaults    map[string]any            `yaml:"defaults"`
	Definitions map[string]map[string]any `yaml:"definitions"`
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	catalog := &Catalog{}

	err := yaml.Unmarshal(data, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return catalog, nil
}

// MergeDefinitions deep merges every base definition with the overlay, keyed by id.
// Precedence from lowest to highest: base defaults, overlay defaults, base definition,
// overlay definition. Maps merge recursively, lists and scalars are replaced.
// An overlay definition without a base counterpart is an error.
func MergeDefinitions(base, overlay *Catalog) (map[string]models.NodeDefinition, error) {
	if base == nil {
		base = &Catalog{}
	}

	if overlay == nil {
		overlay = &Catalog{}
	}

	for _, id := range slices.Sorted(maps.Keys(overlay.Definitions)) {
		if _, ok := base.Definitions[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOverlayDefinition, id)
		}
	}

	merged := make(map[string]models.NodeDefinition, len(base.Definitions))

	for id, document := range base.Definitions {
		combined := deepMerge(base.Defaults, overlay.Defaults, document, overlay.Definitions[id])

		definition, err := decodeDefinition(id, combined)
		if err != nil {
			return nil, err
		}

		merged[id] = definition
	}

	return merged, nil
}

func deepMerge(layers ...map[string]any) map[string]any {
	out := map[string]any{}

	for _, layer := range layers {
		mergeInto(out, layer)
	}

	return out
}

func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		srcMap, isMap := value.(map[string]any)
		if !isMap {
			dst[key] = value

			continue
		}

		dstMap, ok := dst[key].(map[string]any)
		if !ok {
			dstMap = map[string]any{}
		}

		mergeInto(dstMap, srcMap)
		dst[key] = dstMap
	}
}

func decodeDefinition(id string, document map[string]any) (models.NodeDefinition, error) {
	var definition models.NodeDefinition

	raw, err := yaml.Marshal(document)
	if err != nil {
		return definition, fmt.Errorf("failed to encode definition %s: %w", id, err)
	}

	err = yaml.Unmarshal(raw, &definition)
	if err != nil {
		return definition, fmt.Errorf("%w %s: %w", ErrInvalidDefinition, id, err)
	}

	definition.ID = id

	err = normalize(&definition)
	if err != nil {
		return definition, fmt.Errorf("%w %s: %w", ErrInvalidDefinition, id, err)
	}

	return definition, nil
}

func normalize(definition *models.NodeDefinition) error {
	if definition.Name == "" {
		definition.Name = definition.ID
	}

	if definition.Inputs == nil {
		definition.Inputs = map[string]models.InputDefinition{}
	}

	if definition.Outputs == nil {
		definition.Outputs = map[string]models.OutputDefinition{}
	}

	for id, input := range definition.Inputs {
		err := normalizeInterface(id, &input.InterfaceDefinition)
		if err != nil {
			return err
		}

		if len(input.AllowedModes) == 0 {
			input.AllowedModes = []models.PresentationMode{models.ModeHandle, models.ModeConfiguration}
		}

		if input.DefaultMode == "" {
			input.DefaultMode = input.AllowedModes[0]
			if input.Allows(models.ModeHandle) {
				input.DefaultMode = models.ModeHandle
			}
		}

		if !input.Allows(input.DefaultMode) {
			return fmt.Errorf("input %s: default mode %q is not allowed", id, input.DefaultMode)
		}

		definition.Inputs[id] = input
	}

	for id, output := range definition.Outputs {
		err := normalizeInterface(id, &output.InterfaceDefinition)
		if err != nil {
			return err
		}

		definition.Outputs[id] = output
	}

	return nil
}

func normalizeInterface(id string, definition *models.InterfaceDefinition) error {
	if definition.Name == "" {
		definition.Name = id
	}

	if definition.Type == "" {
		definition.Type = models.DataTypeAny
	}

	if !definition.Type.Valid() {
		return fmt.Errorf("interface %s: unknown type %q", id, definition.Type)
	}

	if definition.Group && (definition.GroupMin < 0 || definition.GroupMax < 1 || definition.GroupMax < definition.GroupMin) {
		return fmt.Errorf("interface %s: invalid group bounds [%d,%d]", id, definition.GroupMin, definition.GroupMax)
	}

	return nil
}
