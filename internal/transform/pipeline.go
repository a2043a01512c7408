// Package transform implements the per-field value conversion pipeline: a
// parse step applied once when a panel opens and a format step applied once
// at save, each defaulting to identity. Fields are processed in specification
// order but their pipelines are independent; no field's transform may depend
// on another's already-transformed value.
package transform

import (
	"fmt"

	"github.com/saborverde/opsboard/internal/binder"
	"github.com/saborverde/opsboard/model"
)

// BuildWorkingCopy runs the load path for every field of the panel: raw value
// from the field's Default function or a binder read, then Parse, then a
// binder write into a fresh working copy. Fields absent from the spec list
// are never present in the working copy; it is not a deep clone of the
// record.
func BuildWorkingCopy(spec model.PanelSpec, rec model.Record) (model.Record, error) {
	wc := make(model.Record, len(spec.Fields))

	for _, f := range spec.Fields {
		raw, err := loadRaw(f, rec)
		if err != nil {
			return nil, model.NewTransformError(f.Name, err)
		}

		edit := raw
		if f.Parse != nil {
			edit, err = call(f.Parse, raw)
			if err != nil {
				return nil, model.NewTransformError(f.Name, err)
			}
		}

		binder.Set(wc, f.Name, edit)
	}

	return wc, nil
}

// BuildSubmission runs the save path for every field: binder read from the
// working copy, then Format, then a binder write into a freshly built
// submission object. The working copy itself is never submitted, so
// transient edit-only values cannot leak to the backend.
func BuildSubmission(spec model.PanelSpec, wc model.Record) (map[string]any, error) {
	out := make(map[string]any, len(spec.Fields))

	for _, f := range spec.Fields {
		current, _ := binder.Get(wc, f.Name)

		value := current
		if f.Format != nil {
			var err error
			value, err = call(f.Format, current)
			if err != nil {
				return nil, model.NewTransformError(f.Name, err)
			}
		}

		binder.Set(out, f.Name, value)
	}

	return out, nil
}

// loadRaw resolves a field's raw value: the Default function when present,
// otherwise a direct binder read at the field's path.
func loadRaw(f model.FieldSpec, rec model.Record) (any, error) {
	if f.Default != nil {
		return f.Default(rec)
	}
	v, _ := binder.Get(rec, f.Name)
	return v, nil
}

// call invokes a transform, converting a panic into an error so a misbehaving
// transform is fatal to the current operation only.
func call(fn func(any) (any, error), v any) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transform panic: %v", rec)
		}
	}()
	return fn(v)
}
