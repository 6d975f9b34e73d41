// Package jsonschema wraps santhosh-tekuri/jsonschema/v5 with a compile
// cache, the pattern the plugin manifest validator uses for its config
// schema: compile once per distinct schema body, reuse the compiled form
// for every subsequent validation of that schema.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var cache sync.Map // map[string]*jsonschema.Schema

// Compile compiles schema (a JSON-Schema document) and caches the result
// keyed by its exact byte content, so repeated validation against the same
// action or output schema does not re-parse it every call.
func Compile(name string, schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := cache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiled, err := jsonschema.CompileString(name, key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	cache.Store(key, compiled)
	return compiled, nil
}

// Validate compiles schema (via Compile) and validates payload against it.
// payload is first round-tripped through encoding/json so Go structs and
// raw JSON bytes are both accepted.
func Validate(name string, schema []byte, payload any) error {
	compiled, err := Compile(name, schema)
	if err != nil {
		return err
	}

	raw, ok := payload.(json.RawMessage)
	if !ok {
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", name, err)
		}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode payload for %s: %w", name, err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("%s: schema validation failed: %w", name, err)
	}
	return nil
}
