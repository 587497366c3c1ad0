package registry

import (
	"github.com/zachsents/minus-sub000/pkg/nodes/httprequest"
	"github.com/zachsents/minus-sub000/pkg/nodes/math"
	"github.com/zachsents/minus-sub000/pkg/nodes/texttemplate"
)

// DefaultHooks returns the hooks of the built-in node kinds.
func DefaultHooks() Hooks {
	return Hooks{
		texttemplate.DefinitionID: texttemplate.Hooks(),
		httprequest.DefinitionID:  httprequest.Hooks(),
		math.DivideDefinitionID:   math.DivideHooks(),
	}
}
