// Package entity loads YAML entity definitions, validates them, and compiles
// them into the table and panel specifications the framework runs on. A
// fast-lookup registry with atomic pointer swap serves concurrent reads.
package entity

// Definition declares one editable entity of the dashboard: where its records
// come from, how the table renders them, and how the side panel edits them.
type Definition struct {
	Entity  string `yaml:"entity"`
	Version string `yaml:"version"`
	// Plural names the array key in list responses ("customers", "orders").
	Plural string `yaml:"plural"`

	Source SourceDefinition `yaml:"source"`
	Table  TableDefinition  `yaml:"table"`
	Panel  *PanelDefinition `yaml:"panel,omitempty"`

	Checksum   string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

// SourceDefinition describes the backing REST resource.
type SourceDefinition struct {
	// Service names the configured backend service the records live in.
	Service string `yaml:"service"`
	// Mode selects the pagination strategy: "client" loads the full list
	// once, "server" fetches page by page.
	Mode string `yaml:"mode"`
	// IDField is the record property carrying the row identity.
	IDField string `yaml:"id_field"`

	ListPath   string `yaml:"list_path"`
	UpdatePath string `yaml:"update_path"`
	// UpdateMethod is PATCH or PUT; services disagree on partial updates.
	UpdateMethod string `yaml:"update_method"`
	DeletePath   string `yaml:"delete_path,omitempty"`
}

// TableDefinition declares the column set and default pagination.
type TableDefinition struct {
	Columns  []ColumnDefinition `yaml:"columns"`
	PageSize int                `yaml:"page_size,omitempty"`
	SortBy   string             `yaml:"sort_by,omitempty"`
	SortDir  string             `yaml:"sort_dir,omitempty"`
}

// ColumnDefinition declares one table column.
type ColumnDefinition struct {
	Path     string `yaml:"path"`
	Label    string `yaml:"label"`
	Sortable bool   `yaml:"sortable,omitempty"`
}

// PanelDefinition declares the edit panel: title template, field list, and
// the structural schema outgoing updates must satisfy.
type PanelDefinition struct {
	// TitlePath names the record property used as the panel title.
	TitlePath string `yaml:"title_path,omitempty"`
	// TitlePrefix is prepended to the title value ("Pedido ").
	TitlePrefix string `yaml:"title_prefix,omitempty"`

	Fields []FieldDefinition `yaml:"fields"`

	// Schema is an inline OpenAPI-style object schema compiled at build
	// time; updates failing it never reach the backing service.
	Schema map[string]any `yaml:"schema,omitempty"`
}

// FieldDefinition declares one editable field of a panel. Parse and Format
// name transforms in the conversion registry; Wrap names an editability
// wrapper applied at panel open.
type FieldDefinition struct {
	Path    string             `yaml:"path"`
	Label   string             `yaml:"label"`
	Kind    string             `yaml:"kind"`
	Span    int                `yaml:"span,omitempty"`
	Options []OptionDefinition `yaml:"options,omitempty"`
	Parse   string             `yaml:"parse,omitempty"`
	Format  string             `yaml:"format,omitempty"`
	Wrap    string             `yaml:"wrap,omitempty"`
	View    string             `yaml:"view,omitempty"`
}

// OptionDefinition is one select option.
type OptionDefinition struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}
