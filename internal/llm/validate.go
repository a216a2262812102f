package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	extractionSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return CompileSchema("extraction.json", BuildExtractionJSONSchema())
	})
	verdictSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return CompileSchema("verdict.json", BuildVerdictJSONSchema())
	})
)

// CompileSchema compiles a schema held as a generic map.
func CompileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := CompileSchema("schema.json", schemaMap)
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

// ValidateExtraction checks sanitized model output against the extraction schema.
func ValidateExtraction(data []byte) error {
	schema, err := extractionSchema()
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

// ValidateVerdict checks an auditor reply against the verdict schema.
func ValidateVerdict(data []byte) error {
	schema, err := verdictSchema()
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

func validateWith(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
