package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildGenerateSchema returns the JSON-Schema for the generate-receipt
// request body as a generic map.
func buildGenerateSchema() map[string]any {
	datePattern := `^\d{4}-\d{2}-\d{2}$`
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"donator_id"},
		"properties": map[string]any{
			"donator_id":   map[string]any{"type": "string", "minLength": 1},
			"donator":      map[string]any{"type": "string"},
			"email":        map[string]any{"type": "string"},
			"phone_number": map[string]any{"type": "string"},
			"start_date":   map[string]any{"type": "string", "pattern": datePattern},
			"end_date":     map[string]any{"type": "string", "pattern": datePattern},
			"issued_by":    map[string]any{"type": "string"},
			"note":         map[string]any{"type": "string"},
		},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
