package agent

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentcore/agentcore/event"
)

// Schemas optionally constrains a delegate agent's inputs and outputs. Both
// fields are raw JSON Schema documents; either may be nil to skip
// validation for that side of the boundary.
type Schemas struct {
	Inputs  []byte
	Outputs []byte
}

// RegisterSchema associates name's delegate input/output JSON Schemas in
// the same registry used for constructor lookup, so start_delegate can
// validate inputs before construction and a delegate's outputs before they
// cross back to the parent.
func (r *Registry) RegisterSchema(name string, s Schemas) {
	if r.schemas == nil {
		r.schemas = make(map[string]Schemas)
	}
	r.schemas[name] = s
}

// ValidateInputs validates inputs against name's registered input schema,
// if any. A delegate with no registered schema always validates.
func (r *Registry) ValidateInputs(name string, inputs event.JSONObject) error {
	s, ok := r.schemas[name]
	if !ok {
		return nil
	}
	return validateAgainstSchema(inputs, s.Inputs)
}

// ValidateOutputs validates outputs against name's registered output
// schema, if any.
func (r *Registry) ValidateOutputs(name string, outputs event.JSONObject) error {
	s, ok := r.schemas[name]
	if !ok {
		return nil
	}
	return validateAgainstSchema(outputs, s.Outputs)
}

func validateAgainstSchema(payload event.JSONObject, schemaBytes []byte) error {
	if len(schemaBytes) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(raw, &payloadDoc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	return schema.Validate(payloadDoc)
}
