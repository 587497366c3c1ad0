// Package math provides the input hooks of the arithmetic nodes.
package math

import (
	"errors"
)

const (
	DivideDefinitionID = "math.divide"
	InputDivisor       = "divisor"
)

var ErrDivisionByZero = errors.New("divisor cannot be zero")

func DivideHooks() map[string]any {
	return map[string]any{
		InputDivisor: divisorHook{},
	}
}

type divisorHook struct{}

func (divisorHook) ValidateConfiguration(value any) error {
	switch v := value.(type) {
	case int:
		if v == 0 {
			return ErrDivisionByZero
		}
	case int64:
		if v == 0 {
			return ErrDivisionByZero
		}
	case float64:
		if v == 0 {
			return ErrDivisionByZero
		}
	}

	return nil
}
