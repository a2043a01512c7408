package entity

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// snapshot is an immutable collection of all definitions indexed by entity
// name.
type snapshot struct {
	entities map[string]Definition
	checksum string
}

// Registry is a read-optimized, thread-safe store of loaded entity
// definitions. It uses atomic pointer swap for lock-free concurrent reads.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given definitions.
func NewRegistry(defs []Definition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given definitions.
func (r *Registry) Replace(defs []Definition) {
	s := &snapshot{
		entities: make(map[string]Definition, len(defs)),
	}

	var checksumParts []string
	for _, def := range defs {
		s.entities[def.Entity] = def
		checksumParts = append(checksumParts, def.Checksum)
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Get returns the definition for the given entity name.
func (r *Registry) Get(entity string) (Definition, bool) {
	d, ok := r.current().entities[entity]
	return d, ok
}

// All returns all definitions sorted by entity name.
func (r *Registry) All() []Definition {
	s := r.current()
	defs := make([]Definition, 0, len(s.entities))
	for _, d := range s.entities {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Entity < defs[j].Entity })
	return defs
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
