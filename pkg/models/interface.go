// Package models defines the documents and value objects shared by the definition catalog and the run engine.
package models

// DataType is the type tag carried by an input or output interface.
type DataType string

const (
	DataTypeAny     DataType = "any"
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
)

func (t DataType) Valid() bool {
	switch t {
	case DataTypeAny, DataTypeString, DataTypeNumber, DataTypeBoolean, DataTypeObject, DataTypeArray:
		return true
	default:
		return false
	}
}

// PresentationMode tells whether an input is wired from another node or holds a fixed value.
type PresentationMode string

const (
	ModeHandle        PresentationMode = "handle"
	ModeConfiguration PresentationMode = "configuration"
)

// InterfaceDefinition is the shape shared by input and output definitions.
type InterfaceDefinition struct {
	Name         string         `json:"name,omitempty"         yaml:"name,omitempty"`
	Description  string         `json:"description,omitempty"  yaml:"description,omitempty"`
	Type         DataType       `json:"type"                   yaml:"type"`
	EditableName bool           `json:"editableName,omitempty" yaml:"editableName,omitempty"`
	Group        bool           `json:"group,omitempty"        yaml:"group,omitempty"`
	GroupMin     int            `json:"groupMin,omitempty"     yaml:"groupMin,omitempty"`
	GroupMax     int            `json:"groupMax,omitempty"     yaml:"groupMax,omitempty"`
	UI           map[string]any `json:"ui,omitempty"           yaml:"ui,omitempty"`
}

// Bounds returns the cardinality of the interface. Non-grouped interfaces are always [1,1].
func (d InterfaceDefinition) Bounds() (int, int) {
	if !d.Group {
		return 1, 1
	}

	return d.GroupMin, d.GroupMax
}

type InputDefinition struct {
	InterfaceDefinition `yaml:",inline"`

	Required     bool               `json:"required,omitempty"     yaml:"required,omitempty"`
	DefaultMode  PresentationMode   `json:"defaultMode"            yaml:"defaultMode,omitempty"`
	AllowedModes []PresentationMode `json:"allowedModes"           yaml:"allowedModes,omitempty"`
	Default      any                `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// Allows reports whether mode is one of the allowed presentation modes.
func (d InputDefinition) Allows(mode PresentationMode) bool {
	for _, allowed := range d.AllowedModes {
		if allowed == mode {
			return true
		}
	}

	return false
}

type OutputDefinition struct {
	InterfaceDefinition `yaml:",inline"`
}

// NodeDefinition is the static schema of a node kind.
type NodeDefinition struct {
	ID          string                      `json:"id"                    yaml:"id"`
	Name        string                      `json:"name"                  yaml:"name"`
	Description string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string                      `json:"category,omitempty"    yaml:"category,omitempty"`
	Inputs      map[string]InputDefinition  `json:"inputs"                yaml:"inputs,omitempty"`
	Outputs     map[string]OutputDefinition `json:"outputs"               yaml:"outputs,omitempty"`
	UI          map[string]any              `json:"ui,omitempty"          yaml:"ui,omitempty"`
}
