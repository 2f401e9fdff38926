// Package schema validates tool call arguments against a tool's declared
// JSON Schema before dispatch, so a malformed or missing argument fails
// fast with a precise error instead of reaching the tool's Execute method.
//
// Grounded on haasonsaas-nexus's pkg/pluginsdk/validation.go (CompileString
// + a sync.Map schema cache keyed by the raw schema bytes).
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiledCache sync.Map // map[string]*jsonschema.Schema, keyed by canonical schema JSON

// Validate checks args against the tool's JSON Schema (typically a
// provider.Tool's Parameters field, already decoded to an `any`). A nil or
// empty schema is treated as "no constraints" and always passes.
func Validate(toolName string, rawSchema any, args map[string]any) error {
	if rawSchema == nil {
		return nil
	}

	compiled, err := compile(toolName, rawSchema)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", toolName, err)
	}
	if compiled == nil {
		return nil
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tool %s: encode arguments: %w", toolName, err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("tool %s: decode arguments: %w", toolName, err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tool %s: arguments invalid: %w", toolName, err)
	}
	return nil
}

func compile(toolName string, rawSchema any) (*jsonschema.Schema, error) {
	schemaBytes, err := json.Marshal(rawSchema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	if len(schemaBytes) == 0 || string(schemaBytes) == "null" {
		return nil, nil
	}

	key := string(schemaBytes)
	if cached, ok := compiledCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	resourceName := toolName + ".schema.json"
	compiled, err := jsonschema.CompileString(resourceName, key)
	if err != nil {
		return nil, err
	}
	compiledCache.Store(key, compiled)
	return compiled, nil
}
