// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/livebind/livebind/pkg/livebind"

	"github.com/charmbracelet/log"
)

var _ livebind.Loader = (*Loader)(nil)

type (
	// Loader resolves module ids to manifest files and runs them on a
	// livebind.Graph. Modules are cached by id from the moment they start
	// loading, so an import cycle gets the module that is still running.
	Loader struct {
		graph   *livebind.Graph
		root    string
		logger  *log.Logger
		records map[livebind.ModuleID]*record
		order   []livebind.ModuleID
		// deferred collects dynamic imports that failed after their
		// module finished loading.
		deferred []error
	}

	record struct {
		module   *livebind.Module
		manifest *Manifest
		runtime  *livebind.Runtime
		vars     Vars
	}
)

// NewLoader creates a loader resolving top-level ids against root and
// installs it on graph.
func NewLoader(graph *livebind.Graph, root string) (*Loader, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve module root: %w", err)
	}
	l := &Loader{
		graph:   graph,
		root:    absRoot,
		logger:  graph.Logger(),
		records: make(map[livebind.ModuleID]*record),
	}
	graph.SetLoader(l)
	return l, nil
}

// Root returns the absolute directory top-level ids are resolved against.
func (l *Loader) Root() string {
	return l.root
}

// Load implements livebind.Loader.
func (l *Loader) Load(id string, parent *livebind.Module) (*livebind.Module, error) {
	path, err := l.Resolve(id, parent)
	if err != nil {
		return nil, err
	}
	modID := l.ModuleID(path)
	if rec, ok := l.records[modID]; ok {
		return rec.module, nil
	}

	m, err := Parse(path)
	if err != nil {
		return nil, fmt.Errorf("load module %q: %w", modID, err)
	}

	mod := livebind.NewModule(modID, path, parent)
	rec := &record{module: mod, manifest: m, vars: make(Vars)}
	l.records[modID] = rec
	l.order = append(l.order, modID)
	l.logger.Debug("load manifest", "module", modID, "kind", m.Kind, "path", path)

	rec.runtime = l.graph.Enable(mod)
	var body livebind.Body
	if m.Kind == KindLegacy {
		body = l.legacyBody(rec)
	} else {
		body = l.liveBody(rec)
	}
	if err := rec.runtime.Run(body, nil); err != nil {
		delete(l.records, modID)
		l.order = slices.DeleteFunc(l.order, func(id livebind.ModuleID) bool { return id == modID })
		return nil, err
	}
	return mod, nil
}

// Resolve maps id to a manifest file. Relative ids resolve against the
// importing module's directory, or the loader root for top-level loads.
// The extension may be omitted.
func (l *Loader) Resolve(id string, parent *livebind.Module) (string, error) {
	notFound := &livebind.ModuleNotFoundError{ID: id}
	if parent != nil {
		notFound.Parent = parent.ID
	}
	if id == "" || (strings.Contains(id, ":") && !filepath.IsAbs(id)) {
		return "", notFound
	}

	path := filepath.FromSlash(id)
	if !filepath.IsAbs(path) {
		base := l.root
		if parent != nil && parent.Filename != "" {
			base = parent.Dir()
		}
		path = filepath.Join(base, path)
	}

	for _, candidate := range []string{path, path + extCUE, path + extTOML} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", notFound
}

// ModuleID derives the id of the manifest at path: its slash-separated path
// relative to the loader root, without extension.
func (l *Loader) ModuleID(path string) livebind.ModuleID {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	name := filepath.ToSlash(abs)
	if rel, err := filepath.Rel(l.root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		name = filepath.ToSlash(rel)
	}
	return livebind.ModuleID(strings.TrimSuffix(name, filepath.Ext(name)))
}

// Manifest returns the manifest a loaded module was built from.
func (l *Loader) Manifest(id livebind.ModuleID) (*Manifest, bool) {
	rec, ok := l.records[id]
	if !ok {
		return nil, false
	}
	return rec.manifest, true
}

// Modules returns the loaded module ids in the order loading started.
func (l *Loader) Modules() []livebind.ModuleID {
	return slices.Clone(l.order)
}

// Settle runs the graph's loop until no task is queued, so every dynamic
// import has settled, and returns the dynamic imports that failed.
func (l *Loader) Settle() error {
	l.graph.Loop().Drain()
	errs := l.deferred
	l.deferred = nil
	return errors.Join(errs...)
}

// liveBody declares exports before watching imports, so a cycle that
// comes back to this module finds its getters in place. Dynamic imports
// are only scheduled here.
func (l *Loader) liveBody(rec *record) livebind.LiveBody {
	return func(rt *livebind.Runtime, _ *livebind.Exports) error {
		m := rec.manifest

		pairs := make(livebind.GetterPairs, 0, len(m.Exports))
		for _, name := range m.ExportNames() {
			pairs = append(pairs, livebind.GetterPair{Name: livebind.ExportName(name), Get: rec.getter(name)})
		}
		rt.Export(pairs)
		if m.Default != nil {
			rt.Default(*m.Default)
		}

		for _, from := range m.Reexports {
			if err := rt.Watch(from, livebind.SetterPairs{{Name: livebind.Wildcard, Set: rt.NSSetter()}}); err != nil {
				return fmt.Errorf("re-export %q: %w", from, err)
			}
		}
		for _, imp := range m.Imports {
			if err := rt.Watch(imp.From, rec.importSetters(imp)); err != nil {
				return fmt.Errorf("import %q: %w", imp.From, err)
			}
		}
		for _, imp := range m.Dynamic {
			l.importDynamic(rt, rec, imp)
		}
		return nil
	}
}

// importDynamic loads imp.From through Runtime.Import. Once the import
// resolves, the module watches it like a static import, which binds the
// variables and recomputes the module's exports. The future settles from
// inside the imported module's Update, so the watch is queued for the
// following tick rather than nested in it.
func (l *Loader) importDynamic(rt *livebind.Runtime, rec *record, imp Import) {
	fail := func(err error) {
		l.deferred = append(l.deferred, fmt.Errorf("dynamic import %q of module %q: %w", imp.From, rec.module.ID, err))
	}
	rt.Import(imp.From).Then(func(_ *livebind.Namespace, err error) {
		if err != nil {
			fail(err)
			return
		}
		err = l.graph.Loop().Submit(func() {
			if err := rt.Watch(imp.From, rec.importSetters(imp)); err != nil {
				fail(err)
				return
			}
			l.logger.Debug("dynamic import bound", "module", rec.module.ID, "from", imp.From)
		})
		if err != nil {
			fail(err)
		}
	})
}

// legacyBody requires its dependencies, then assigns every export once.
// Templates are expanded leniently: names a dependency has not assigned
// yet, as happens in require cycles, expand to the empty string.
func (l *Loader) legacyBody(rec *record) livebind.LegacyBody {
	return func(exports *livebind.Exports, require livebind.RequireFunc, mod *livebind.Module, _, _ string) error {
		m := rec.manifest

		for _, req := range m.Require {
			required, err := require(req.From)
			if err != nil {
				return fmt.Errorf("require %q: %w", req.From, err)
			}
			rec.vars[req.As] = required
		}

		target := exports
		if m.ReplaceExports {
			if len(m.Exports) == 0 && m.Default != nil {
				mod.Exports = livebind.NewValueExports(*m.Default)
				return nil
			}
			target = livebind.NewExports()
			mod.Exports = target
		}

		for _, name := range m.ExportNames() {
			tpl, _ := m.Template(name)
			out, err := tpl.Expand(rec.vars, false)
			if err != nil {
				return fmt.Errorf("export %q: %w", name, err)
			}
			target.Set(livebind.ExportName(name), out)
		}
		if m.Default != nil {
			target.Set(livebind.DefaultName, *m.Default)
		}
		return nil
	}
}

// getter evaluates the current template of name. Unbound variables make
// the binding Uninitialized; any other expansion failure panics, which the
// graph reports as a *livebind.GetterError.
func (r *record) getter(name string) livebind.Getter {
	return func() any {
		tpl, ok := r.manifest.Template(name)
		if !ok {
			return livebind.Uninitialized
		}
		out, err := tpl.Expand(r.vars, true)
		if errors.Is(err, ErrUnbound) {
			return livebind.Uninitialized
		}
		if err != nil {
			panic(err)
		}
		return out
	}
}

func (r *record) importSetters(imp Import) livebind.SetterPairs {
	var pairs livebind.SetterPairs
	if imp.As != "" {
		local := imp.As
		pairs = append(pairs, livebind.SetterPair{
			Name: livebind.Wildcard,
			Set:  func(v any, _ *livebind.Entry) { r.vars[local] = v },
		})
	}
	for _, local := range sortedKeys(imp.Names) {
		pairs = append(pairs, livebind.SetterPair{
			Name: livebind.ExportName(imp.Names[local]),
			Set:  func(v any, _ *livebind.Entry) { r.vars[local] = v },
		})
	}
	return pairs
}
