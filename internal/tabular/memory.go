package tabular

import (
	"fmt"
	"sort"
	"strings"

	"github.com/saborverde/opsboard/internal/binder"
	"github.com/saborverde/opsboard/model"
)

// MemoryEngine applies sorting, filtering, and column projection in memory.
type MemoryEngine struct{}

// NewMemoryEngine creates a MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{}
}

// Apply filters, sorts, and projects the rows. The input slice and its rows
// are never mutated.
func (e *MemoryEngine) Apply(rows []model.Record, q Query) []model.Record {
	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		if matches(row, q.Filters) {
			out = append(out, row)
		}
	}

	if q.SortBy != "" {
		desc := q.SortDir == SortDesc
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return compare(out[j], out[i], q.SortBy)
			}
			return compare(out[i], out[j], q.SortBy)
		})
	}

	if len(q.VisibleColumns) > 0 {
		projected := make([]model.Record, len(out))
		for i, row := range out {
			p := make(model.Record, len(q.VisibleColumns))
			for _, col := range q.VisibleColumns {
				if v, ok := binder.Get(row, col); ok {
					binder.Set(p, col, v)
				}
			}
			projected[i] = p
		}
		out = projected
	}

	return out
}

func matches(row model.Record, filters []Filter) bool {
	for _, f := range filters {
		v, _ := binder.Get(row, f.Field)
		s := stringify(v)
		switch f.Op {
		case "eq", "":
			if s != f.Value {
				return false
			}
		case "contains":
			if !strings.Contains(strings.ToLower(s), strings.ToLower(f.Value)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compare(a, b model.Record, field string) bool {
	av, _ := binder.Get(a, field)
	bv, _ := binder.Get(b, field)

	af, aNum := asFloat(av)
	bf, bNum := asFloat(bv)
	if aNum && bNum {
		return af < bf
	}
	return stringify(av) < stringify(bv)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
