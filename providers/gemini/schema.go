package gemini

import (
	"fmt"

	"google.golang.org/genai"
)

// jsonSchemaToGenai converts a normalized JSON Schema object (as produced by
// provider.NormalizeSchema) into Gemini's own *genai.Schema shape, which the
// SDK requires in place of raw JSON for function declarations.
func jsonSchemaToGenai(schema map[string]any) (*genai.Schema, error) {
	out := &genai.Schema{}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	typ, _ := schema["type"].(string)
	switch typ {
	case "object", "":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, fmt.Errorf("gemini: unsupported JSON Schema type %q", typ)
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("gemini: property %q is not a schema object", name)
			}
			converted, err := jsonSchemaToGenai(sub)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = converted
		}
	} else if out.Type == genai.TypeObject {
		out.Properties = map[string]*genai.Schema{}
	}

	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		converted, err := jsonSchemaToGenai(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = converted
	}

	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	return out, nil
}
