// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"errors"
	"fmt"
	"slices"
)

// ErrBuiltinExists is returned when a builtin id is registered twice.
var ErrBuiltinExists = errors.New("builtin already registered")

// BuiltinRegistry maps identifiers to entries supplied by the host. Builtin
// entries are built once, marked loaded, and never reloaded; imports of a
// builtin id never reach the Loader.
type BuiltinRegistry struct {
	graph   *Graph
	entries map[ModuleID]*Entry
	order   []ModuleID
}

func newBuiltinRegistry(g *Graph) *BuiltinRegistry {
	return &BuiltinRegistry{
		graph:   g,
		entries: make(map[ModuleID]*Entry),
	}
}

// Register adds a builtin backed by a legacy exports object.
func (r *BuiltinRegistry) Register(id ModuleID, exports *Exports) (*Entry, error) {
	if exports == nil {
		exports = NewExports()
	}
	entry, err := r.add(id, exports)
	if err != nil {
		return nil, err
	}
	entry.sourceType = sourceTypeOf(exports)
	return r.finalize(entry)
}

// RegisterNamespace adds a builtin whose bindings are computed by getters.
func (r *BuiltinRegistry) RegisterNamespace(id ModuleID, pairs GetterPairs) (*Entry, error) {
	if err := pairs.Validate(); err != nil {
		return nil, fmt.Errorf("builtin %q: %w", id, err)
	}
	exports := NewExports()
	exports.MarkESModule()
	entry, err := r.add(id, exports)
	if err != nil {
		return nil, err
	}
	entry.sourceType = SourceLiveBinding
	entry.AddGetters(pairs)
	if _, err := r.finalize(entry); err != nil {
		return nil, err
	}
	entry.namespace.copyTo(exports)
	return entry, nil
}

// Lookup returns the builtin entry for id.
func (r *BuiltinRegistry) Lookup(id ModuleID) (*Entry, bool) {
	entry, ok := r.entries[id]
	return entry, ok
}

// Has reports whether id is a builtin.
func (r *BuiltinRegistry) Has(id ModuleID) bool {
	_, ok := r.entries[id]
	return ok
}

// IDs returns the registered ids in registration order.
func (r *BuiltinRegistry) IDs() []ModuleID {
	return slices.Clone(r.order)
}

func (r *BuiltinRegistry) add(id ModuleID, exports *Exports) (*Entry, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if _, ok := r.entries[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrBuiltinExists, id)
	}
	entry := newEntry(r.graph, id, exports)
	r.entries[id] = entry
	r.order = append(r.order, id)
	r.graph.byExports[exports] = entry
	return entry, nil
}

func (r *BuiltinRegistry) finalize(entry *Entry) (*Entry, error) {
	if _, err := entry.Update(); err != nil {
		delete(r.entries, entry.id)
		r.order = slices.DeleteFunc(r.order, func(id ModuleID) bool { return id == entry.id })
		delete(r.graph.byExports, entry.exports)
		return nil, err
	}
	return entry.Loaded(), nil
}
