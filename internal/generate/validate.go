package generate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles JSON Schemas once per distinct document. The compose
// slots reuse a handful of schemas across every job, so compilation cost is
// paid once.
type schemaCache struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{schemas: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) compile(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)

	c.mu.Lock()
	defer c.mu.Unlock()

	if compiled, ok := c.schemas[key]; ok {
		return compiled, nil
	}

	compiled, err := jsonschema.CompileString("output_schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	c.schemas[key] = compiled
	return compiled, nil
}

// validateDocument checks that content is a JSON document conforming to
// schema. Violations come back as MalformedOutputError.
func (c *schemaCache) validateDocument(content []byte, schema json.RawMessage) error {
	compiled, err := c.compile(schema)
	if err != nil {
		return err
	}

	var doc any
	if unmarshalErr := json.Unmarshal(content, &doc); unmarshalErr != nil {
		return &MalformedOutputError{Reason: "content is not JSON", Cause: unmarshalErr}
	}

	if validateErr := compiled.Validate(doc); validateErr != nil {
		return &MalformedOutputError{Reason: "schema violation", Cause: validateErr}
	}
	return nil
}
