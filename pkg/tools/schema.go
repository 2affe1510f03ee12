package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// schemaFor reflects a JSON schema from a tool's typed input struct.
// References are inlined and additional properties rejected so the
// result can be embedded directly as a chat function parameters object.
func schemaFor(v interface{}) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

// schemaObject converts a schema into the generic map shape of the chat
// wire format.
func schemaObject(s *jsonschema.Schema) map[string]interface{} {
	fallback := map[string]interface{}{"type": "object"}
	raw, err := json.Marshal(s)
	if err != nil {
		return fallback
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fallback
	}
	return obj
}

// decodeArgs decodes model-supplied arguments into a tool's typed input
// struct. Decoding is weakly typed because models send numbers as
// json.Number or quoted strings; unknown keys are rejected so a
// misspelled parameter fails loudly instead of silently defaulting.
func decodeArgs(tool string, args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return &ToolError{Tool: tool, Message: fmt.Sprintf("invalid arguments: %v", err), Err: err}
	}
	if err := decoder.Decode(args); err != nil {
		return &ToolError{Tool: tool, Message: fmt.Sprintf("invalid arguments: %v", err), Err: err}
	}
	return nil
}
