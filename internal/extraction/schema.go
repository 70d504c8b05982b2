package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"invoicedesk/internal/model"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func responseSchemaMap() map[string]any {
	scalar := map[string]any{"type": []string{"string", "number", "null"}}
	props := map[string]any{
		model.FieldLineItems:        map[string]any{"type": []string{"array", "string", "null"}},
		model.FieldOCRQualityScore:  map[string]any{"type": []string{"number", "string", "null"}},
		model.FieldMultipleInvoices: map[string]any{"type": []string{"boolean", "string", "null"}},
	}
	for _, key := range model.RequiredFields {
		props[key] = scalar
	}
	for _, key := range model.OptionalFields {
		props[key] = scalar
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
}

var responseSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(responseSchemaMap())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice_response.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("invoice_response.json")
})

// validateResponse checks a decoded model response against the response schema.
func validateResponse(v any) error {
	schema, err := responseSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
