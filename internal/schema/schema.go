// ABOUTME: Structural input schemas for tools and their JSON Schema rendering.
// ABOUTME: Tools describe arguments with Schema; MCP clients receive draft-07 JSON Schema.

package schema

import (
	"encoding/json"
	"sort"
)

// Draft is the JSON Schema dialect advertised at the root of rendered schemas.
const Draft = "http://json-schema.org/draft-07/schema#"

// Schema is the structural description of a tool's arguments.
// A nil *Schema means "an object with no declared properties".
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	Pattern     string
	Minimum     *float64
	Maximum     *float64
	Default     any

	// Additional controls additionalProperties on objects. Nil leaves it unset.
	Additional *bool
}

// Object builds an object schema with the given properties and required keys.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String builds a string schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Number builds a number schema.
func Number(description string) *Schema {
	return &Schema{Type: "number", Description: description}
}

// Integer builds an integer schema.
func Integer(description string) *Schema {
	return &Schema{Type: "integer", Description: description}
}

// Boolean builds a boolean schema.
func Boolean(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// Array builds an array schema whose elements match items.
func Array(items *Schema, description string) *Schema {
	return &Schema{Type: "array", Items: items, Description: description}
}

// WithEnum restricts a schema to the given values.
func (s *Schema) WithEnum(values ...string) *Schema {
	s.Enum = values
	return s
}

// WithPattern sets a regular expression a string value must match.
func (s *Schema) WithPattern(pattern string) *Schema {
	s.Pattern = pattern
	return s
}

// WithRange bounds a numeric schema.
func (s *Schema) WithRange(min, max float64) *Schema {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

// WithDefault records the value used when the argument is omitted.
func (s *Schema) WithDefault(v any) *Schema {
	s.Default = v
	return s
}

// Strict forbids properties that are not declared.
func (s *Schema) Strict() *Schema {
	f := false
	s.Additional = &f
	return s
}

// Open allows any extra properties.
func (s *Schema) Open() *Schema {
	t := true
	s.Additional = &t
	return s
}

// ToJSONSchema renders s as a draft-07 JSON Schema document.
func ToJSONSchema(s *Schema) map[string]any {
	if s == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
			"$schema":    Draft,
		}
	}
	out := render(s)
	out["$schema"] = Draft
	return out
}

// MarshalJSONSchema is ToJSONSchema encoded as JSON.
func MarshalJSONSchema(s *Schema) (json.RawMessage, error) {
	return json.Marshal(ToJSONSchema(s))
}

func render(s *Schema) map[string]any {
	out := map[string]any{}
	if s.Type != "" {
		out["type"] = s.Type
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Pattern != "" {
		out["pattern"] = s.Pattern
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if s.Default != nil {
		out["default"] = s.Default
	}
	if s.Items != nil {
		out["items"] = render(s.Items)
	}

	if s.Type == "object" {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			if p == nil {
				props[name] = map[string]any{}
				continue
			}
			props[name] = render(p)
		}
		out["properties"] = props

		required := make([]string, len(s.Required))
		copy(required, s.Required)
		sort.Strings(required)
		out["required"] = required

		if s.Additional != nil {
			out["additionalProperties"] = *s.Additional
		}
	}
	return out
}
