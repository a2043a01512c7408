package entity

import (
	"fmt"

	"github.com/saborverde/opsboard/internal/schema"
	"github.com/saborverde/opsboard/internal/transform"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator checks definitions structurally and against the transform
// registry their fields reference.
type Validator struct {
	transforms *transform.Registry
	builder    *Builder
}

// NewValidator creates a Validator. The registry may be nil to skip transform
// reference checks.
func NewValidator(transforms *transform.Registry) *Validator {
	return &Validator{transforms: transforms}
}

// BindTo attaches the builder whose wrapper and view registrations the
// fields' wrap and view references are checked against. Unbound validators
// skip those checks, so callers must bind after registering wrappers and
// views but before validating.
func (v *Validator) BindTo(b *Builder) {
	v.builder = b
}

// CheckVersionBumps compares incoming definitions against the currently
// loaded ones and reports every entity whose file content changed while its
// version stayed the same. New and removed entities pass. Used to reject
// silent edits on reload when strict checksums are enabled.
func CheckVersionBumps(current, incoming []Definition) []VError {
	running := make(map[string]Definition, len(current))
	for _, def := range current {
		running[def.Entity] = def
	}

	var errs []VError
	for i, def := range incoming {
		prior, ok := running[def.Entity]
		if !ok {
			continue
		}
		if def.Checksum != prior.Checksum && def.Version == prior.Version {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("definitions[%d].version", i),
				Code:    "VERSION_NOT_BUMPED",
				Message: fmt.Sprintf("entity %q changed without a version bump (still %s)", def.Entity, def.Version),
			})
		}
	}
	return errs
}

var validModes = map[string]bool{"client": true, "server": true}

var validMethods = map[string]bool{"PATCH": true, "PUT": true}

var validKinds = map[string]bool{
	"text": true, "number": true, "select": true, "custom": true,
}

// Validate checks all definitions and reports every problem found.
func (v *Validator) Validate(defs []Definition) []VError {
	var errs []VError
	seen := make(map[string]string, len(defs))

	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		if def.Entity != "" {
			if prior, dup := seen[def.Entity]; dup {
				errs = append(errs, VError{
					Path:    prefix + ".entity",
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("entity %q already defined in %s", def.Entity, prior),
				})
			}
			seen[def.Entity] = def.SourceFile
		}
		errs = append(errs, v.validateDefinition(prefix, def)...)
	}
	return errs
}

func (v *Validator) validateDefinition(prefix string, def Definition) []VError {
	var errs []VError

	if def.Entity == "" {
		errs = append(errs, VError{Path: prefix + ".entity", Code: "REQUIRED", Message: "entity is required"})
	}
	if def.Version == "" {
		errs = append(errs, VError{Path: prefix + ".version", Code: "REQUIRED", Message: "version is required"})
	}
	if def.Plural == "" {
		errs = append(errs, VError{Path: prefix + ".plural", Code: "REQUIRED", Message: "plural is required"})
	}

	errs = append(errs, v.validateSource(prefix+".source", def.Source)...)
	errs = append(errs, v.validateTable(prefix+".table", def.Table)...)
	if def.Panel != nil {
		errs = append(errs, v.validatePanel(prefix+".panel", *def.Panel)...)
	}

	return errs
}

func (v *Validator) validateSource(prefix string, s SourceDefinition) []VError {
	var errs []VError

	if s.Service == "" {
		errs = append(errs, VError{Path: prefix + ".service", Code: "REQUIRED", Message: "service is required"})
	}
	if s.Mode == "" {
		errs = append(errs, VError{Path: prefix + ".mode", Code: "REQUIRED", Message: "mode is required"})
	} else if !validModes[s.Mode] {
		errs = append(errs, VError{Path: prefix + ".mode", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid mode %q", s.Mode)})
	}
	if s.IDField == "" {
		errs = append(errs, VError{Path: prefix + ".id_field", Code: "REQUIRED", Message: "id_field is required"})
	}
	if s.ListPath == "" {
		errs = append(errs, VError{Path: prefix + ".list_path", Code: "REQUIRED", Message: "list_path is required"})
	}
	if s.UpdatePath != "" {
		if s.UpdateMethod == "" {
			errs = append(errs, VError{Path: prefix + ".update_method", Code: "REQUIRED", Message: "update_method is required when update_path is set"})
		} else if !validMethods[s.UpdateMethod] {
			errs = append(errs, VError{Path: prefix + ".update_method", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid update_method %q", s.UpdateMethod)})
		}
	}

	return errs
}

func (v *Validator) validateTable(prefix string, t TableDefinition) []VError {
	var errs []VError

	if len(t.Columns) == 0 {
		errs = append(errs, VError{Path: prefix + ".columns", Code: "REQUIRED", Message: "at least one column is required"})
	}
	for i, c := range t.Columns {
		if c.Path == "" {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.columns[%d].path", prefix, i), Code: "REQUIRED", Message: "path is required"})
		}
	}
	if t.PageSize < 0 || t.PageSize > 200 {
		errs = append(errs, VError{Path: prefix + ".page_size", Code: "RANGE", Message: "page_size must be 0-200"})
	}

	return errs
}

func (v *Validator) validatePanel(prefix string, p PanelDefinition) []VError {
	var errs []VError

	if len(p.Fields) == 0 {
		errs = append(errs, VError{Path: prefix + ".fields", Code: "REQUIRED", Message: "at least one field is required"})
	}
	for i, f := range p.Fields {
		fp := fmt.Sprintf("%s.fields[%d]", prefix, i)
		if f.Path == "" {
			errs = append(errs, VError{Path: fp + ".path", Code: "REQUIRED", Message: "path is required"})
		}
		if f.Kind == "" {
			errs = append(errs, VError{Path: fp + ".kind", Code: "REQUIRED", Message: "kind is required"})
		} else if !validKinds[f.Kind] {
			errs = append(errs, VError{Path: fp + ".kind", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid kind %q", f.Kind)})
		}
		if f.Kind == "select" && len(f.Options) == 0 && f.Wrap == "" {
			errs = append(errs, VError{Path: fp + ".options", Code: "REQUIRED", Message: "select fields need options"})
		}
		if f.Span < 0 || f.Span > 2 {
			errs = append(errs, VError{Path: fp + ".span", Code: "RANGE", Message: "span must be 1 or 2"})
		}

		if v.transforms != nil {
			if f.Parse != "" {
				if _, ok := v.transforms.Get(f.Parse); !ok {
					errs = append(errs, VError{Path: fp + ".parse", Code: "REF_NOT_FOUND", Message: fmt.Sprintf("transform %q not registered", f.Parse)})
				}
			}
			if f.Format != "" {
				if _, ok := v.transforms.Get(f.Format); !ok {
					errs = append(errs, VError{Path: fp + ".format", Code: "REF_NOT_FOUND", Message: fmt.Sprintf("transform %q not registered", f.Format)})
				}
			}
		}

		if v.builder != nil {
			if f.Wrap != "" && !v.builder.HasWrapper(f.Wrap) {
				errs = append(errs, VError{Path: fp + ".wrap", Code: "REF_NOT_FOUND", Message: fmt.Sprintf("wrapper %q not registered", f.Wrap)})
			}
			if f.Kind == "custom" && !v.builder.HasView(f.View) {
				errs = append(errs, VError{Path: fp + ".view", Code: "REF_NOT_FOUND", Message: fmt.Sprintf("view %q not registered", f.View)})
			}
		}
	}

	if p.Schema != nil {
		if _, err := schema.Compile(p.Schema); err != nil {
			errs = append(errs, VError{Path: prefix + ".schema", Code: "INVALID_SCHEMA", Message: err.Error()})
		}
	}

	return errs
}
