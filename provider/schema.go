package provider

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cortexflow/llmkit/llmerr"
)

// NormalizeSchema renders an arbitrary Go value or json.RawMessage input
// schema into a parsed JSON object map, validating it is well-formed JSON
// Schema along the way. Adapters call this once per tool before applying
// their own dialect-specific rewrites (StripSchemaKeyword, RequireObjectShape).
func NormalizeSchema(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	var raw json.RawMessage
	switch v := schema.(type) {
	case json.RawMessage:
		raw = v
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, "marshal tool schema", err)
		}
		raw = data
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, "marshal tool schema", err)
		}
		raw = data
	}

	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidInput, "parse tool schema", err)
	}
	const resourceURL = "inline://tool-schema.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidInput, "add tool schema resource", err)
	}
	if _, err := compiler.Compile(resourceURL); err != nil {
		return nil, llmerr.Wrap(llmerr.InvalidInput, "compile tool schema", err)
	}

	m, ok := doc.(map[string]any)
	if !ok {
		return nil, llmerr.New(llmerr.InvalidInput, "tool schema must be a JSON object")
	}
	return m, nil
}

// StripSchemaKeyword removes the top-level "$schema" keyword in place.
// Gemini rejects tool schemas that carry it.
func StripSchemaKeyword(schema map[string]any) {
	delete(schema, "$schema")
}

// RequireObjectShape forces "additionalProperties": false and a non-nil
// "properties" object (defaulting to {} when the tool takes no arguments),
// matching the OpenAI Responses and Chat Completions function-calling
// contract.
func RequireObjectShape(schema map[string]any) {
	if schema["type"] == nil {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	schema["additionalProperties"] = false
}

// ValidateToolInput validates a candidate tool-call input against schema
// using the compiled santhosh-tekuri validator, returning a ToolCallError
// when the input does not conform.
func ValidateToolInput(schema map[string]any, input json.RawMessage) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return llmerr.Wrap(llmerr.InvalidInput, "marshal schema for validation", err)
	}
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return llmerr.Wrap(llmerr.InvalidInput, "parse schema for validation", err)
	}
	const resourceURL = "inline://validate-input.json"
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return llmerr.Wrap(llmerr.InvalidInput, "add schema resource", err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return llmerr.Wrap(llmerr.InvalidInput, "compile schema for validation", err)
	}
	var value any
	if len(input) == 0 {
		value = map[string]any{}
	} else if err := json.Unmarshal(input, &value); err != nil {
		return llmerr.Wrap(llmerr.ToolCallError, "tool input is not valid JSON", err)
	}
	if err := compiled.Validate(value); err != nil {
		return llmerr.Wrap(llmerr.ToolCallError, "tool input does not match schema", err)
	}
	return nil
}
