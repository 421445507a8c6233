// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"testing"
)

// memoryLoader serves module bodies from a map and caches modules by id,
// returning in-progress modules to close cycles.
type memoryLoader struct {
	graph    *Graph
	bodies   map[string]Body
	cache    map[string]*Module
	requests map[string]int
}

func newTestGraph(t *testing.T, opts Options, bodies map[string]Body) (*Graph, *memoryLoader) {
	t.Helper()
	g := NewGraph(opts)
	l := &memoryLoader{
		graph:    g,
		bodies:   bodies,
		cache:    make(map[string]*Module),
		requests: make(map[string]int),
	}
	g.SetLoader(l)
	return g, l
}

func (l *memoryLoader) Load(id string, parent *Module) (*Module, error) {
	l.requests[id]++
	if mod, ok := l.cache[id]; ok {
		return mod, nil
	}
	body, ok := l.bodies[id]
	if !ok {
		var parentID ModuleID
		if parent != nil {
			parentID = parent.ID
		}
		return nil, &ModuleNotFoundError{ID: id, Parent: parentID}
	}

	mod := NewModule(ModuleID(id), "/virtual/"+id, parent)
	l.cache[id] = mod
	if err := l.graph.Enable(mod).Run(body, nil); err != nil {
		delete(l.cache, id)
		return nil, err
	}
	return mod, nil
}

// mustLoad loads id as a top-level module.
func (l *memoryLoader) mustLoad(t *testing.T, id string) *Module {
	t.Helper()
	mod, err := l.Load(id, nil)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return mod
}

func mustEntry(t *testing.T, g *Graph, id ModuleID) *Entry {
	t.Helper()
	entry, ok := g.Entry(id)
	if !ok {
		t.Fatalf("no entry for %s", id)
	}
	return entry
}

// constModule is a live-binding body exporting fixed values.
func constModule(values map[ExportName]any, order ...ExportName) LiveBody {
	return func(rt *Runtime, _ *Exports) error {
		pairs := make(GetterPairs, 0, len(order))
		for _, name := range order {
			pairs = append(pairs, GetterPair{Name: name, Get: Const(values[name])})
		}
		rt.Export(pairs)
		return nil
	}
}
