// Package tools defines the tool descriptors advertised to the model, the
// validation applied before every model request, and the dispatch of tool
// invocations to the handlers that execute them.
package tools

// Tool is a named, schema-described capability the model may invoke.
// InputSchema is kept as a decoded JSON object so that schemas produced by
// external generators pass through untouched.
type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	InputSchema map[string]any `json:"input_schema" yaml:"input_schema"`
}

// JSONSchema is a typed builder for the schemas of tools defined in code.
// Tools loaded from files keep their raw schema instead.
type JSONSchema struct {
	// Type is the JSON type of the node ("object", "string", ...).
	Type string `json:"type"`
	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`
	// Properties describes the fields of an object node.
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	// Required lists mandatory properties of an object node.
	Required []string `json:"required,omitempty"`
	// Enum restricts a node to a fixed set of values.
	Enum []string `json:"enum,omitempty"`
	// AdditionalProperties allows free-form keys on an object node.
	AdditionalProperties bool `json:"additionalProperties,omitempty"`
}

// Map converts the schema into the generic form carried by Tool.
func (s JSONSchema) Map() map[string]any {
	m := map[string]any{"type": s.Type}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.Map()
		}
		m["properties"] = props
	}
	if len(s.Required) > 0 {
		m["required"] = toAnySlice(s.Required)
	}
	if len(s.Enum) > 0 {
		m["enum"] = toAnySlice(s.Enum)
	}
	if s.AdditionalProperties {
		m["additionalProperties"] = true
	}
	return m
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// NewTool is a helper that builds a Tool from a typed schema.
func NewTool(name, description string, schema JSONSchema) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: schema.Map(),
	}
}

