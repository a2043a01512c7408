// Package model holds the shared types of the record table and edit panel
// framework: records, field and panel specifications, descriptors served to
// the frontend, and the standard error envelope.
package model

// Record is an opaque domain entity instance (customer, order, product, ...)
// as decoded from a backend JSON payload. The framework never inspects record
// shape except through field specifications.
type Record = map[string]any

// Editable wraps a field value together with its editability, computed once
// at panel-open time. The wrapping is produced by a FieldSpec's Default
// function and stripped again by its Format function before validation; it
// never reaches the backend.
type Editable struct {
	Value      any  `json:"value"`
	IsEditable bool `json:"is_editable"`
}

// DataParams carries pagination, sorting, and filter parameters for a table
// data request. PageIndex is zero-based internally; the REST surface converts
// from the 1-based page query parameter.
type DataParams struct {
	PageIndex int
	PageSize  int
	SortBy    string
	SortDir   string
	Filters   map[string]string
}

// DataResponse is one page of table rows plus the derived pagination state.
type DataResponse struct {
	Rows       []Record `json:"rows"`
	TotalCount int      `json:"total_count"`
	PageIndex  int      `json:"page_index"`
	PageSize   int      `json:"page_size"`
	PageCount  int      `json:"page_count"`
}
