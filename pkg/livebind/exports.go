// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"maps"
	"slices"
)

type (
	// Exports is the mutable exports value of a module. Legacy bodies mutate
	// it directly; live-binding bodies get their final namespace copied onto
	// it so legacy importers see a plain object.
	//
	// An Exports may instead carry a single value (see SetValue), the
	// equivalent of a legacy module assigning a non-object to its exports.
	Exports struct {
		names    []ExportName
		values   map[ExportName]any
		value    any
		hasValue bool
		esModule bool
	}

	// Namespace is the ordered, read-only view of an entry's exported
	// bindings as of its most recent recompute. Importers holding a
	// *Namespace observe later recomputes.
	Namespace struct {
		names  []ExportName
		values map[ExportName]any
	}

	binding struct {
		name  ExportName
		value any
	}
)

// NewExports creates an empty exports object.
func NewExports() *Exports {
	return &Exports{values: make(map[ExportName]any)}
}

// NewValueExports creates an exports value holding a single non-object value.
func NewValueExports(v any) *Exports {
	e := NewExports()
	e.SetValue(v)
	return e
}

// Get returns the property stored under name.
func (e *Exports) Get(name ExportName) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Set stores a property, keeping first-insertion order.
func (e *Exports) Set(name ExportName, v any) {
	if _, ok := e.values[name]; !ok {
		e.names = append(e.names, name)
	}
	e.values[name] = v
}

// Delete removes a property.
func (e *Exports) Delete(name ExportName) {
	if _, ok := e.values[name]; !ok {
		return
	}
	delete(e.values, name)
	e.names = slices.DeleteFunc(e.names, func(n ExportName) bool { return n == name })
}

// Names returns the property names in insertion order.
func (e *Exports) Names() []ExportName {
	return slices.Clone(e.names)
}

// Len returns the number of properties.
func (e *Exports) Len() int {
	return len(e.names)
}

// SetValue turns the exports into a single-value export.
func (e *Exports) SetValue(v any) {
	e.value = v
	e.hasValue = true
}

// Value returns the single value set with SetValue.
func (e *Exports) Value() (any, bool) {
	return e.value, e.hasValue
}

// MarkESModule flags the exports as produced by a live-binding module.
func (e *Exports) MarkESModule() {
	e.esModule = true
}

// IsESModule reports whether MarkESModule was called.
func (e *Exports) IsESModule() bool {
	return e.esModule
}

// sourceTypeOf classifies an exports value.
func sourceTypeOf(e *Exports) SourceType {
	if e == nil {
		return SourceUnknown
	}
	if e.esModule {
		return SourceLiveBinding
	}
	return SourceLegacy
}

func newNamespace() *Namespace {
	return &Namespace{values: make(map[ExportName]any)}
}

// Get returns the value of name as of the last recompute.
func (n *Namespace) Get(name ExportName) (any, bool) {
	v, ok := n.values[name]
	return v, ok
}

// Value returns the value of name, or nil when the name is absent.
func (n *Namespace) Value(name ExportName) any {
	return n.values[name]
}

// Has reports whether name is present.
func (n *Namespace) Has(name ExportName) bool {
	_, ok := n.values[name]
	return ok
}

// Names returns the export names in order.
func (n *Namespace) Names() []ExportName {
	return slices.Clone(n.names)
}

// Len returns the number of names.
func (n *Namespace) Len() int {
	return len(n.names)
}

// Range calls fn for every binding in order until fn returns false.
func (n *Namespace) Range(fn func(name ExportName, value any) bool) {
	for _, name := range n.names {
		if !fn(name, n.values[name]) {
			return
		}
	}
}

// Map returns a copy of the bindings.
func (n *Namespace) Map() map[ExportName]any {
	return maps.Clone(n.values)
}

// commit replaces the namespace contents in one step.
func (n *Namespace) commit(staged []binding) {
	n.names = n.names[:0]
	clear(n.values)
	for _, b := range staged {
		if _, ok := n.values[b.name]; !ok {
			n.names = append(n.names, b.name)
		}
		n.values[b.name] = b.value
	}
}

// copyTo assigns every initialized binding onto the exports object.
func (n *Namespace) copyTo(e *Exports) {
	for _, name := range n.names {
		v := n.values[name]
		if IsUninitialized(v) {
			continue
		}
		e.Set(name, v)
	}
}
