package transform

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/saborverde/opsboard/model"
)

// Func is a named value transform usable as either a parse or a format step.
type Func func(any) (any, error)

// Registry maps transform names to implementations so YAML entity
// definitions can reference conversions declaratively.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates a Registry pre-populated with the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("trim", Trim)
	r.Register("digits_only", DigitsOnly)
	r.Register("mask_cep", MaskCEP)
	r.Register("mask_cnpj", MaskCNPJ)
	r.Register("to_int", ToInt)
	r.Register("to_float", ToFloat)
	r.Register("editable_unwrap", EditableUnwrap)
	return r
}

// Register adds or replaces a named transform.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Get returns the transform registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns all registered transform names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	return names
}

// Trim trims surrounding whitespace from a string value. Non-strings pass
// through unchanged.
func Trim(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s), nil
	}
	return v, nil
}

// DigitsOnly strips every non-digit rune from a string value. Nil passes
// through so optional document fields survive the save path.
func DigitsOnly(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("digits_only: expected string, got %T", v)
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// MaskCEP formats an 8-digit CEP as "89000-000". Values that are not exactly
// eight digits after stripping pass through unchanged; display masking must
// never destroy data it does not understand.
func MaskCEP(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("mask_cep: expected string, got %T", v)
	}
	digits, _ := DigitsOnly(s)
	d := digits.(string)
	if len(d) != 8 {
		return s, nil
	}
	return d[:5] + "-" + d[5:], nil
}

// MaskCNPJ formats a 14-digit CNPJ as "12.345.678/0001-90". Values that are
// not exactly fourteen digits after stripping pass through unchanged.
func MaskCNPJ(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("mask_cnpj: expected string, got %T", v)
	}
	digits, _ := DigitsOnly(s)
	d := digits.(string)
	if len(d) != 14 {
		return s, nil
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:], nil
}

// ToInt coerces JSON numbers and numeric strings to int64.
func ToInt(v any) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("to_int: %w", err)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("to_int: unsupported type %T", v)
	}
}

// ToFloat coerces JSON numbers and numeric strings to float64.
func ToFloat(v any) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("to_float: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("to_float: unsupported type %T", v)
	}
}

// EditableUnwrap strips an Editable wrapper back to its bare value. Unwrapped
// values pass through, so the same format step serves wrapped and plain
// fields. It also accepts the map shape the wrapper takes after a JSON
// round trip.
func EditableUnwrap(v any) (any, error) {
	switch w := v.(type) {
	case model.Editable:
		return w.Value, nil
	case *model.Editable:
		if w == nil {
			return nil, nil
		}
		return w.Value, nil
	case map[string]any:
		if inner, ok := w["value"]; ok {
			if _, hasFlag := w["is_editable"]; hasFlag {
				return inner, nil
			}
		}
		return w, nil
	default:
		return v, nil
	}
}
