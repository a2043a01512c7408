package model

import "github.com/getkin/kin-openapi/openapi3"

// FieldKind identifies the editing control rendered for a field. Custom kinds
// carry their own view factory as an escape hatch for controls the built-in
// kinds cannot express.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldNumber FieldKind = "number"
	FieldSelect FieldKind = "select"
	FieldCustom FieldKind = "custom"
)

// Option is a label/value pair for select fields.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DefaultFunc supplies a field's initial raw value when it is not a direct
// property read from the record.
type DefaultFunc func(rec Record) (any, error)

// ParseFunc converts a raw record value into its editable representation.
// It runs once, at panel open.
type ParseFunc func(raw any) (any, error)

// FormatFunc converts an editable representation back into the submission
// value. It runs once, at save.
type FormatFunc func(edit any) (any, error)

// ViewFactory builds a control descriptor for a custom field given its
// current edit value. The returned map is serialized to the frontend as-is.
type ViewFactory func(value any) map[string]any

// FieldSpec describes one editable region of a panel.
//
// Name is a dotted path into the record ("billing_address.cep"); it may
// describe a path that does not exist in the raw record, in which case
// Default is mandatory. Parse and Format default to identity when nil. The
// pipeline is intentionally one-directional per field: Format(Parse(raw))
// need not reproduce raw, and round-tripping is the caller's concern when it
// matters (formatted CNPJ in, cleaned CNPJ out).
type FieldSpec struct {
	Name    string
	Label   string
	Kind    FieldKind
	ColSpan int // 1 or 2 of a 2-column grid; presentation only
	Options []Option
	Default DefaultFunc
	Parse   ParseFunc
	Format  FormatFunc
	View    ViewFactory // required for FieldCustom, ignored otherwise
}

// PanelSpec describes the edit panel for one record type: title and
// description factories, the ordered field list, the structural schema every
// outgoing update must satisfy, and the cache-invalidation hook fired after
// each successful mutation.
type PanelSpec struct {
	Title        func(rec Record) string
	Description  func(rec Record) string // optional
	Fields       []FieldSpec
	UpdateSchema *openapi3.Schema
	Invalidate   func()
}

// FieldByName returns the FieldSpec with the given dotted path.
func (p PanelSpec) FieldByName(name string) (FieldSpec, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
