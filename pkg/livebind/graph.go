// SPDX-License-Identifier: MPL-2.0

package livebind

import (
	"io"

	"github.com/livebind/livebind/internal/dag"
	"github.com/livebind/livebind/pkg/eventloop"

	"github.com/charmbracelet/log"
)

type (
	// Options configures a Graph.
	Options struct {
		// Loader loads non-builtin modules. Without one, only builtins resolve.
		Loader Loader
		// Loop schedules Import resolutions. A new loop is created when nil.
		Loop *eventloop.Loop
		// Logger receives debug traces of loads. Output is discarded when nil.
		Logger *log.Logger
		// MaxLoadDepth bounds nested synchronous loads. Zero means unlimited.
		MaxLoadDepth int
		// CompatExports hands live-binding bodies their exports object.
		CompatExports bool
		// PassthroughRequire gives legacy bodies the require function supplied
		// to Run unchanged instead of the graph-aware wrapper.
		PassthroughRequire bool
	}

	// Graph is the arena that owns every Entry, keyed by module id, along
	// with the state shared by all modules of one module set: load depth,
	// builtins, loader and scheduler.
	Graph struct {
		entries   map[ModuleID]*Entry
		order     []ModuleID
		byExports map[*Exports]*Entry

		builtins *BuiltinRegistry
		loader   Loader
		state    *LoadState
		loop     *eventloop.Loop
		logger   *log.Logger
		opts     Options
	}
)

// NewGraph creates an empty Graph.
func NewGraph(opts Options) *Graph {
	if opts.Loop == nil {
		opts.Loop = eventloop.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	g := &Graph{
		entries:   make(map[ModuleID]*Entry),
		byExports: make(map[*Exports]*Entry),
		loader:    opts.Loader,
		state:     NewLoadState(opts.MaxLoadDepth),
		loop:      opts.Loop,
		logger:    opts.Logger,
		opts:      opts,
	}
	g.builtins = newBuiltinRegistry(g)
	return g
}

// SetLoader replaces the loader. Loaders that need the Graph to run module
// bodies are usually built after it.
func (g *Graph) SetLoader(l Loader) {
	g.loader = l
}

// Builtins returns the builtin registry.
func (g *Graph) Builtins() *BuiltinRegistry {
	return g.builtins
}

// LoadState returns the nested-load counter.
func (g *Graph) LoadState() *LoadState {
	return g.state
}

// Loop returns the scheduler used by Import.
func (g *Graph) Loop() *eventloop.Loop {
	return g.loop
}

// Logger returns the graph's logger.
func (g *Graph) Logger() *log.Logger {
	return g.logger
}

// Options returns the options the graph was built with.
func (g *Graph) Options() Options {
	return g.opts
}

// Enable creates the Runtime a module body uses to talk to its Entry.
func (g *Graph) Enable(mod *Module) *Runtime {
	entry := g.EntryFor(mod)
	g.logger.Debug("module enabled", "module", mod.ID, "source", entry.sourceType)
	return &Runtime{graph: g, module: mod, entry: entry}
}

// EntryFor returns the entry of mod, creating it on first use. When the
// module's exports object was replaced outside of Run, the existing entry
// is rebound to the new object so earlier holders stay current.
func (g *Graph) EntryFor(mod *Module) *Entry {
	if mod.Exports == nil {
		mod.Exports = NewExports()
	}

	if entry, ok := g.entries[mod.ID]; ok {
		if entry.exports != mod.Exports {
			g.rebind(entry, mod.Exports)
		}
		return entry
	}
	if entry, ok := g.byExports[mod.Exports]; ok {
		return entry
	}

	entry := newEntry(g, mod.ID, mod.Exports)
	if mod.Loaded || mod.Exports.IsESModule() {
		entry.sourceType = sourceTypeOf(mod.Exports)
	}
	g.entries[mod.ID] = entry
	g.order = append(g.order, mod.ID)
	g.byExports[mod.Exports] = entry
	return entry
}

// EntryForExports returns the entry associated with an exports value.
func (g *Graph) EntryForExports(exports *Exports) (*Entry, bool) {
	entry, ok := g.byExports[exports]
	return entry, ok
}

// Entry returns the entry of a loaded or builtin module.
func (g *Graph) Entry(id ModuleID) (*Entry, bool) {
	entry := g.lookup(id)
	return entry, entry != nil
}

// Entries returns the module entries in creation order. Builtins are not included.
func (g *Graph) Entries() []*Entry {
	out := make([]*Entry, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entries[id])
	}
	return out
}

// LoadOrder orders the loaded modules so every module comes after the
// modules it imported. Import cycles are reported as a *dag.CycleError.
func (g *Graph) LoadOrder() ([]ModuleID, error) {
	d := dag.New()
	for _, id := range g.order {
		d.AddNode(string(id))
		for _, child := range g.entries[id].children {
			if _, ok := g.entries[child]; !ok {
				continue
			}
			d.AddEdge(string(child), string(id))
		}
	}

	sorted, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}
	ids := make([]ModuleID, 0, len(sorted))
	for _, id := range sorted {
		ids = append(ids, ModuleID(id))
	}
	return ids, nil
}

// Reset drops every module entry. Builtins stay registered but forget the
// setters registered by dropped modules.
func (g *Graph) Reset() {
	g.entries = make(map[ModuleID]*Entry)
	g.order = nil
	g.byExports = make(map[*Exports]*Entry)
	g.state = NewLoadState(g.opts.MaxLoadDepth)
	for _, entry := range g.builtins.entries {
		entry.resetSetters()
		g.byExports[entry.exports] = entry
	}
}

// lookup resolves an id against the arena, then the builtins.
func (g *Graph) lookup(id ModuleID) *Entry {
	if g == nil {
		return nil
	}
	if entry, ok := g.entries[id]; ok {
		return entry
	}
	if entry, ok := g.builtins.Lookup(id); ok {
		return entry
	}
	return nil
}

// freshEntry builds an entry for a module's final exports object without
// registering it, unless the object already has one.
func (g *Graph) freshEntry(mod *Module) *Entry {
	if entry, ok := g.byExports[mod.Exports]; ok {
		return entry
	}
	entry := newEntry(g, mod.ID, mod.Exports)
	entry.sourceType = sourceTypeOf(mod.Exports)
	return entry
}

// rebind associates entry with a new exports object. The identity mapping
// is only taken over when no other module owns the object.
func (g *Graph) rebind(entry *Entry, exports *Exports) {
	entry.exports = exports
	entry.sourceType = sourceTypeOf(exports)
	if owner, ok := g.byExports[exports]; !ok || owner.id == entry.id {
		g.byExports[exports] = entry
	}
}

// importModule resolves id for parent: builtins first, then the loader.
func (g *Graph) importModule(id string, parent *Entry, parentMod *Module) (*Entry, error) {
	if entry, ok := g.builtins.Lookup(ModuleID(id)); ok {
		g.logger.Debug("builtin hit", "module", id)
		return entry, nil
	}
	if g.loader == nil {
		return nil, ErrNoLoader
	}

	child, err := g.loader.Load(id, parentMod)
	if err != nil {
		return nil, err
	}

	entry := g.EntryFor(child)
	if child.Loaded {
		if entry.sourceType == SourceUnknown {
			entry.sourceType = sourceTypeOf(child.Exports)
		}
		entry.Loaded()
	}
	if parent != nil {
		parent.addChild(entry.id)
	}
	return entry, nil
}

// wrapRequire returns the require function legacy bodies receive.
func (g *Graph) wrapRequire(parent *Entry, parentMod *Module) RequireFunc {
	return func(id string) (*Exports, error) {
		release, err := g.state.Enter()
		if err != nil {
			return nil, err
		}
		defer release()

		if entry, ok := g.builtins.Lookup(ModuleID(id)); ok {
			return entry.exports, nil
		}
		if g.loader == nil {
			return nil, ErrNoLoader
		}

		g.logger.Debug("require", "module", id, "parent", parentMod.ID, "depth", g.state.Depth())
		child, err := g.loader.Load(id, parentMod)
		if err != nil {
			return nil, err
		}
		parent.addChild(g.EntryFor(child).id)
		return child.Exports, nil
	}
}
