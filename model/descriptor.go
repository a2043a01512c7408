package model

// TableDescriptor tells the frontend how to render an entity table: its
// columns, default page size, and where to fetch data.
type TableDescriptor struct {
	Entity       string             `json:"entity"`
	Title        string             `json:"title"`
	DataEndpoint string             `json:"data_endpoint"`
	Columns      []ColumnDescriptor `json:"columns"`
	PageSize     int                `json:"page_size"`
	DefaultSort  string             `json:"default_sort,omitempty"`
	SortDir      string             `json:"sort_dir,omitempty"`
	HasPanel     bool               `json:"has_panel"`
}

// ColumnDescriptor describes a table column.
type ColumnDescriptor struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Sortable bool   `json:"sortable,omitempty"`
	Format   string `json:"format,omitempty"`
	Visible  bool   `json:"visible"`
}

// PanelDescriptor is the rendered state of one open edit panel: resolved
// title and description, the per-field descriptors with current edit values,
// and the session identity the frontend uses for subsequent edit calls.
type PanelDescriptor struct {
	SessionID   string            `json:"session_id"`
	RowID       string            `json:"row_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	State       string            `json:"state"`
	Fields      []FieldDescriptor `json:"fields"`
}

// FieldDescriptor describes one editable field with its current edit value.
type FieldDescriptor struct {
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Kind       FieldKind      `json:"kind"`
	ColSpan    int            `json:"col_span"`
	Value      any            `json:"value"`
	IsEditable bool           `json:"is_editable"`
	Options    []Option       `json:"options,omitempty"`
	Control    map[string]any `json:"control,omitempty"` // custom kinds only
}
