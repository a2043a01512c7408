// Package schema implements the validation gate that guards every outgoing
// update: the fully-assembled submission object is checked against the
// panel's declared structural schema before the update collaborator is ever
// invoked. Fields are edited independently and untyped during a session;
// the gate is the only place that guarantees the backend never receives a
// structurally malformed payload.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/saborverde/opsboard/model"
)

// Gate validates submission objects against a structural schema.
type Gate struct {
	schema *openapi3.Schema
}

// NewGate creates a Gate for the given schema. A nil schema produces a gate
// that accepts everything, for panels whose backend performs no structural
// validation of its own.
func NewGate(s *openapi3.Schema) *Gate {
	return &Gate{schema: s}
}

// Validate checks the submission object. On failure it returns a
// VALIDATION_ERROR envelope with field-level details addressed by dotted
// path; the caller must abort the save without invoking the update
// collaborator.
func (g *Gate) Validate(submission map[string]any) error {
	if g.schema == nil {
		return nil
	}

	err := g.schema.VisitJSON(submission, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	details := collectFieldErrors(err)
	if len(details) == 0 {
		details = []model.FieldError{{Field: "", Code: "SCHEMA", Message: err.Error()}}
	}
	return model.NewValidationError(details)
}

// collectFieldErrors flattens kin-openapi's error tree into field errors.
func collectFieldErrors(err error) []model.FieldError {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var details []model.FieldError
		for _, e := range multi {
			details = append(details, collectFieldErrors(e)...)
		}
		return details
	}

	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return []model.FieldError{{
			Field:   strings.Join(se.JSONPointer(), "."),
			Code:    "SCHEMA",
			Message: se.Reason,
		}}
	}

	return []model.FieldError{{Field: "", Code: "SCHEMA", Message: err.Error()}}
}

// Compile turns an inline schema document (the map shape produced by a YAML
// entity definition) into an openapi3.Schema.
func Compile(raw map[string]any) (*openapi3.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal: %w", err)
	}
	var s openapi3.Schema
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &s, nil
}
