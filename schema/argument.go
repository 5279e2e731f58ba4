// Package schema defines the Argument/Result/Example documentation
// types shared by every Tool, plus JSON-Schema projection for external
// tool-metadata consumers.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Argument describes one named parameter a Tool accepts. Type is purely
// descriptive ("int", "str", "list[str]", "dict", ...); values are never
// converted to it.
type Argument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Required    bool    `json:"required"`
	Default     any    `json:"default,omitempty"`
	HasDefault  bool   `json:"-"`
}

// ToJSON projects the argument for external consumers (tool metadata
// endpoints, snapshots).
func (a Argument) ToJSON() map[string]any {
	out := map[string]any{
		"name":        a.Name,
		"description": a.Description,
		"type":        a.Type,
		"required":    a.Required,
	}
	if a.HasDefault {
		out["default"] = a.Default
	}
	return out
}

// Result documents a Tool's return value. It is pure documentation and
// is never enforced at runtime.
type Result struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Example demonstrates one valid invocation of a Tool.
type Example struct {
	Description string         `json:"description"`
	Args        map[string]any `json:"args"`
	Output      any            `json:"output,omitempty"`
}

// MissingRequired returns the names of required arguments absent from
// kwargs.
func MissingRequired(args []Argument, kwargs map[string]any) []string {
	var missing []string
	for _, a := range args {
		if !a.Required {
			continue
		}
		if _, ok := kwargs[a.Name]; !ok {
			missing = append(missing, a.Name)
		}
	}
	return missing
}

// Extraneous returns the names present in kwargs that are not declared
// in args.
func Extraneous(args []Argument, kwargs map[string]any) []string {
	known := make(map[string]bool, len(args))
	for _, a := range args {
		known[a.Name] = true
	}
	var extra []string
	for k := range kwargs {
		if k == "context" {
			continue
		}
		if !known[k] {
			extra = append(extra, k)
		}
	}
	return extra
}

// FillDefaults returns a copy of kwargs with each Argument's default
// inserted where the caller omitted that name entirely.
func FillDefaults(args []Argument, kwargs map[string]any) map[string]any {
	filled := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		filled[k] = v
	}
	for _, a := range args {
		if !a.HasDefault {
			continue
		}
		if _, present := filled[a.Name]; !present {
			filled[a.Name] = a.Default
		}
	}
	return filled
}

// JSONSchema reflects Go type T into a JSON Schema object describing its
// fields, using the same invopop/jsonschema reflector configuration the
// teacher uses for ADK-Go compatible function tools.
func JSONSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	s := reflector.Reflect(new(T))

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to marshal reflected schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("schema: failed to decode reflected schema: %w", err)
	}
	return out, nil
}

// ArgumentsToSchema renders a manually-declared Argument list as a JSON
// Schema object, for tools built without a typed Args struct (see
// tool.Toolify vs tool.New).
func ArgumentsToSchema(args []Argument) map[string]any {
	properties := make(map[string]any, len(args))
	var required []string
	for _, a := range args {
		prop := map[string]any{"type": jsonType(a.Type), "description": a.Description}
		if a.HasDefault {
			prop["default"] = a.Default
		}
		properties[a.Name] = prop
		if a.Required {
			required = append(required, a.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func jsonType(descriptive string) string {
	switch descriptive {
	case "int", "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "list", "list[str]", "list[int]", "array":
		return "array"
	case "dict", "object", "map":
		return "object"
	default:
		return "string"
	}
}
