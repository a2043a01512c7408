// Package tabular defines the tabular-data engine collaborator the table
// controller delegates sorting, filtering, and column visibility to, plus an
// in-memory implementation used for client-mode tables.
package tabular

import "github.com/saborverde/opsboard/model"

// SortDir values accepted by a Query.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Filter is one column filter. Op is "eq" or "contains"; unknown operators
// match nothing.
type Filter struct {
	Field string
	Op    string
	Value string
}

// Query is the sorting/filtering/visibility state applied to a row set.
type Query struct {
	SortBy         string
	SortDir        string
	Filters        []Filter
	VisibleColumns []string // empty means all columns
}

// Engine computes a row model from source rows and a query. Implementations
// must not mutate the input rows; the table controller always re-derives its
// view from whatever the caller supplies.
type Engine interface {
	Apply(rows []model.Record, q Query) []model.Record
}
