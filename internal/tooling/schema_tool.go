package tooling

import (
	"context"
	"encoding/json"
	"fmt"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is a named data-retrieval operation with a JSON Schema describing its
// input. The input schema is generated from a Go struct via invopop/jsonschema;
// the dispatcher validates arguments before Call and explores whatever domain
// value Call returns.
type Tool interface {
	// Name returns the unique tool name used in function-calling
	// (e.g. "lookup_pokemon").
	Name() string
	// Description returns a human-readable description for the reasoning service.
	Description() string
	// Definition returns the JSON Schema string for the tool's input struct.
	Definition() string
	// Call executes the tool and returns a domain value for exploration.
	// Implementations must validate args against the schema before execution.
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// marshalFunc is the JSON marshaler used by GenerateSchema. Package-level so
// tests can inject a failing marshaler to cover the error return path.
var marshalFunc = func(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// unmarshalFunc is the JSON unmarshaler used by tool Call implementations.
// Package-level so tests can inject a failing unmarshaler.
var unmarshalFunc = json.Unmarshal

// GenerateSchema generates a JSON Schema string from a Go struct using
// invopop/jsonschema reflection.
func GenerateSchema(input interface{}) string {
	reflector := invopopSchema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(input)

	schemaBytes, err := marshalFunc(schema)
	if err != nil {
		return ""
	}
	return string(schemaBytes)
}

// ValidateAgainstSchema validates JSON input against a JSON Schema string.
func ValidateAgainstSchema(input json.RawMessage, schemaStr string) error {
	schema, err := jsonschema.CompileString("", schemaStr)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var inputData interface{}
	if err := json.Unmarshal(input, &inputData); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}

	if err := schema.Validate(inputData); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
