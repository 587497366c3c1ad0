package nodes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/zachsents/minus-sub000/pkg/models"
)

var (
	// ErrInvalidInput is the generic validation failure, used when a hook has no better message.
	ErrInvalidInput   = errors.New("invalid input")
	ErrRequired       = errors.New("a value is required")
	ErrModeNotAllowed = errors.New("presentation mode not allowed")
	ErrUnknownInput   = errors.New("unknown input definition")
	ErrTypeMismatch   = errors.New("value does not match input type")
)

// ValidationError reports why one input instance is invalid.
type ValidationError struct {
	Input   string `json:"input"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input %s: %s", e.Input, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error came from input validation.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// ValidateInput checks one input instance. The first failing rule wins, in order:
// the InputValidator hook, then (configuration mode only) the ConfigurationValidator hook,
// the required flag and the type tag. Inputs wired from a handle skip the value rules.
func ValidateInput(definition *Definition, input *models.InterfaceInstance, siblings []*models.InterfaceInstance) error {
	inputDefinition, ok := definition.Inputs[input.Definition]
	if !ok {
		return newValidationError(input, ErrUnknownInput)
	}

	hook := definition.Hook(input.Definition)

	if validator, ok := hook.(InputValidator); ok {
		if err := validator.ValidateInput(input, siblings); err != nil {
			return newValidationError(input, err)
		}
	}

	if input.Mode != "" && !inputDefinition.Allows(input.Mode) {
		return newValidationError(input, fmt.Errorf("%w: %s", ErrModeNotAllowed, input.Mode))
	}

	if input.Mode != models.ModeConfiguration {
		return nil
	}

	if validator, ok := hook.(ConfigurationValidator); ok {
		if err := validator.ValidateConfiguration(input.Value); err != nil {
			return newValidationError(input, err)
		}
	}

	if isEmpty(input.Value) {
		if inputDefinition.Required {
			return newValidationError(input, ErrRequired)
		}

		return nil
	}

	if err := checkType(inputDefinition.Type, input.Value); err != nil {
		return newValidationError(input, err)
	}

	return nil
}

// ValidateNode validates every input of the node and returns the failures.
func ValidateNode(definition *Definition, node *models.Node) []*ValidationError {
	var failures []*ValidationError

	for _, input := range node.Inputs {
		err := ValidateInput(definition, input, node.Inputs)

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			failures = append(failures, validationErr)
		}
	}

	return failures
}

// Describe returns the hook supplied description of the input, falling back to the static one.
func Describe(definition *Definition, input *models.InterfaceInstance) string {
	if describer, ok := definition.Hook(input.Definition).(Describer); ok {
		if description := describer.Describe(input); description != "" {
			return description
		}
	}

	return definition.Inputs[input.Definition].Description
}

func newValidationError(input *models.InterfaceInstance, err error) *ValidationError {
	return &ValidationError{
		Input:   input.ID,
		Message: err.Error(),
		Err:     err,
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func checkType(dataType models.DataType, value any) error {
	if dataType == "" || dataType == models.DataTypeAny {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(map[string]any{"type": string(dataType)})
	dataLoader := gojsonschema.NewGoLoader(value)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.Description())
		}

		return fmt.Errorf("%w: %s", ErrTypeMismatch, strings.Join(messages, "; "))
	}

	return nil
}
