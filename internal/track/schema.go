package track

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildJobSchema returns the JSON-Schema the push channel's job documents
// must satisfy before they are applied to the state machine.
func BuildJobSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":   map[string]any{"type": "string", "minLength": 1},
			"task": map[string]any{"type": "string"},
			"status": map[string]any{
				"type": "string",
				"enum": []string{"STARTED", "SUCCEEDED", "FAILED"},
			},
			"result_url":    map[string]any{"type": []string{"string", "null"}},
			"error_message": map[string]any{"type": []string{"string", "null"}},
			"session_id":    map[string]any{"type": "string"},
			"user_id":       map[string]any{"type": "string"},
			"created_at":    map[string]any{"type": "string"},
			"updated_at":    map[string]any{"type": "string"},
		},
		"required": []string{"id", "status"},
	}
}

// ValidateJobJSON validates data against the job document schema.
func ValidateJobJSON(data []byte) error {
	b, err := json.Marshal(BuildJobSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("job.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("job.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("job document does not match schema: %w", err)
	}
	return nil
}
