// Package binder resolves and mutates values at dotted nested paths inside
// map-shaped records. Every entity panel describes its fields as a flat list
// of arbitrarily deep targets; the binder is what lets one generic pipeline
// serve heterogeneous record shapes without per-entity mapping code.
package binder

import "strings"

// Get reads the value at a dot-separated path. Each segment is a plain key
// lookup, never an array index. Reading through an absent or non-map
// intermediate yields (nil, false), not an error.
func Get(rec map[string]any, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = rec
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set writes the value at a dot-separated path, allocating empty nested maps
// for any absent intermediate node. An intermediate node that exists but is
// not a map is replaced by a map; the working copy is session-local, so the
// overwrite never touches caller data.
func Set(rec map[string]any, path string, value any) {
	if rec == nil || path == "" {
		return
	}

	segments := strings.Split(path, ".")
	current := rec
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
