// Package schema validates tool arguments against their declared JSON
// schemas. Schemas are compiled once at startup; a compile failure is a
// programming error in a tool definition and aborts boot.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldError is one schema violation tied to its location in the arguments.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violation found in one tool's arguments.
type ValidationError struct {
	Tool   string       `json:"tool"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("invalid arguments for %s (%s)", e.Tool, strings.Join(parts, "; "))
}

// Validator holds the compiled input schema of every enabled tool.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles the given input schemas, keyed by tool name.
func NewValidator(inputs map[string]map[string]any) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(inputs))}
	for tool, input := range inputs {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("marshal %s input schema: %w", tool, err)
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://market-gateway.local/tools/%s.schema.json", tool)
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("load %s input schema: %w", tool, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s input schema: %w", tool, err)
		}
		v.schemas[tool] = compiled
	}
	return v, nil
}

// Validate checks one tool's arguments. Tools without a registered schema
// accept anything. Violations come back as a *ValidationError.
func (v *Validator) Validate(tool string, args map[string]any) error {
	s, ok := v.schemas[tool]
	if !ok {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	err := s.Validate(args)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return &ValidationError{Tool: tool, Fields: fieldErrors(ve)}
	}
	return &ValidationError{Tool: tool, Fields: []FieldError{{Field: "(root)", Message: err.Error()}}}
}

// fieldErrors flattens a validation tree into its leaf violations.
func fieldErrors(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		return []FieldError{{Field: fieldName(ve.InstanceLocation), Message: ve.Message}}
	}
	var out []FieldError
	for _, c := range ve.Causes {
		out = append(out, fieldErrors(c)...)
	}
	return out
}

// fieldName renders a JSON pointer instance location as a dotted path.
func fieldName(loc string) string {
	loc = strings.TrimPrefix(loc, "/")
	if loc == "" {
		return "(root)"
	}
	return strings.ReplaceAll(loc, "/", ".")
}
