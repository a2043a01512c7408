package entity

import (
	"fmt"

	"github.com/saborverde/opsboard/internal/binder"
	"github.com/saborverde/opsboard/internal/schema"
	"github.com/saborverde/opsboard/internal/transform"
	"github.com/saborverde/opsboard/model"
)

// WrapFunc pairs a raw field value with editability computed from the whole
// record, named in a definition's `wrap` attribute.
type WrapFunc func(rec model.Record, value any) model.Editable

// ViewFunc builds a custom control descriptor, named in a definition's
// `view` attribute.
type ViewFunc func(value any) map[string]any

// Builder compiles entity definitions into runnable table and panel
// specifications. Transform names resolve against the conversion registry;
// wrap and view names resolve against the maps registered here.
type Builder struct {
	transforms *transform.Registry
	wrappers   map[string]WrapFunc
	views      map[string]ViewFunc
}

// NewBuilder creates a Builder over the given transform registry.
func NewBuilder(transforms *transform.Registry) *Builder {
	return &Builder{
		transforms: transforms,
		wrappers:   make(map[string]WrapFunc),
		views:      make(map[string]ViewFunc),
	}
}

// RegisterWrapper adds a named editability wrapper.
func (b *Builder) RegisterWrapper(name string, fn WrapFunc) {
	b.wrappers[name] = fn
}

// RegisterView adds a named custom view factory.
func (b *Builder) RegisterView(name string, fn ViewFunc) {
	b.views[name] = fn
}

// HasWrapper reports whether an editability wrapper is registered.
func (b *Builder) HasWrapper(name string) bool {
	_, ok := b.wrappers[name]
	return ok
}

// HasView reports whether a custom view factory is registered.
func (b *Builder) HasView(name string) bool {
	_, ok := b.views[name]
	return ok
}

// Columns compiles the definition's column list.
func (b *Builder) Columns(def Definition) []model.ColumnDescriptor {
	cols := make([]model.ColumnDescriptor, 0, len(def.Table.Columns))
	for _, c := range def.Table.Columns {
		cols = append(cols, model.ColumnDescriptor{
			Field:    c.Path,
			Label:    c.Label,
			Sortable: c.Sortable,
			Visible:  true,
		})
	}
	return cols
}

// Table compiles the definition into a frontend table descriptor.
func (b *Builder) Table(def Definition) model.TableDescriptor {
	pageSize := def.Table.PageSize
	if pageSize == 0 {
		pageSize = 25
	}
	return model.TableDescriptor{
		Entity:       def.Entity,
		Title:        def.Plural,
		DataEndpoint: fmt.Sprintf("/api/v1/entities/%s/data", def.Entity),
		Columns:      b.Columns(def),
		PageSize:     pageSize,
		DefaultSort:  def.Table.SortBy,
		SortDir:      def.Table.SortDir,
		HasPanel:     def.Panel != nil,
	}
}

// Panel compiles the definition's panel block into a PanelSpec. invalidate
// fires after each successful mutation. Definitions without a panel block are
// read-only; Panel returns an error for them.
func (b *Builder) Panel(def Definition, invalidate func()) (model.PanelSpec, error) {
	if def.Panel == nil {
		return model.PanelSpec{}, fmt.Errorf("entity %q has no panel", def.Entity)
	}
	pd := *def.Panel

	spec := model.PanelSpec{
		Title:      b.titleFunc(pd),
		Invalidate: invalidate,
	}

	if pd.Schema != nil {
		compiled, err := schema.Compile(pd.Schema)
		if err != nil {
			return model.PanelSpec{}, fmt.Errorf("entity %q: compiling schema: %w", def.Entity, err)
		}
		spec.UpdateSchema = compiled
	}

	for i, fd := range pd.Fields {
		field, err := b.buildField(fd)
		if err != nil {
			return model.PanelSpec{}, fmt.Errorf("entity %q: fields[%d]: %w", def.Entity, i, err)
		}
		spec.Fields = append(spec.Fields, field)
	}

	return spec, nil
}

func (b *Builder) titleFunc(pd PanelDefinition) func(model.Record) string {
	return func(rec model.Record) string {
		if pd.TitlePath == "" {
			return pd.TitlePrefix
		}
		v, ok := binder.Get(rec, pd.TitlePath)
		if !ok || v == nil {
			return pd.TitlePrefix
		}
		return pd.TitlePrefix + fmt.Sprint(v)
	}
}

func (b *Builder) buildField(fd FieldDefinition) (model.FieldSpec, error) {
	span := fd.Span
	if span == 0 {
		span = 1
	}

	field := model.FieldSpec{
		Name:    fd.Path,
		Label:   fd.Label,
		Kind:    model.FieldKind(fd.Kind),
		ColSpan: span,
	}
	for _, o := range fd.Options {
		field.Options = append(field.Options, model.Option{Label: o.Label, Value: o.Value})
	}

	if fd.Parse != "" {
		fn, ok := b.transforms.Get(fd.Parse)
		if !ok {
			return model.FieldSpec{}, fmt.Errorf("transform %q not registered", fd.Parse)
		}
		field.Parse = model.ParseFunc(fn)
	}
	if fd.Format != "" {
		fn, ok := b.transforms.Get(fd.Format)
		if !ok {
			return model.FieldSpec{}, fmt.Errorf("transform %q not registered", fd.Format)
		}
		field.Format = model.FormatFunc(fn)
	}

	if fd.Wrap != "" {
		wrap, ok := b.wrappers[fd.Wrap]
		if !ok {
			return model.FieldSpec{}, fmt.Errorf("wrapper %q not registered", fd.Wrap)
		}
		path := fd.Path
		field.Default = func(rec model.Record) (any, error) {
			raw, _ := binder.Get(rec, path)
			return wrap(rec, raw), nil
		}
		// Wrapped values must come back off before validation.
		if field.Format == nil {
			field.Format = transform.EditableUnwrap
		}
	}

	if fd.Kind == "custom" {
		view, ok := b.views[fd.View]
		if !ok {
			return model.FieldSpec{}, fmt.Errorf("view %q not registered", fd.View)
		}
		field.View = model.ViewFactory(view)
	}

	return field, nil
}
