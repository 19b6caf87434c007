package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateIdentityPayload checks a sanitized model response against the
// identity-field schema before it is decoded into IdentityFields. The
// schema map is the one sent to the model, so any drift between the two
// surfaces here.
func ValidateIdentityPayload(schemaMap map[string]any, payload []byte) error {
	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("encode identity schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("identity.schema.json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("register identity schema: %w", err)
	}
	schema, err := compiler.Compile("identity.schema.json")
	if err != nil {
		return fmt.Errorf("compile identity schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode model payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload violates identity schema: %w", err)
	}
	return nil
}
