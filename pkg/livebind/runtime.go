// SPDX-License-Identifier: MPL-2.0

package livebind

import "fmt"

type (
	// Facade is the fixed set of operations a rewritten module body calls.
	// The one-letter methods are exact synonyms kept for compact call sites.
	Facade interface {
		DefaultExport(value any)
		RegisterExports(pairs GetterPairs)
		ImportModule(id string) *Future
		NamespaceSetter() Setter
		RunModuleBody(body Body, require RequireFunc) error
		Recompute(value any) (any, error)
		WatchModule(id string, setters SetterPairs) error

		D(value any)
		E(pairs GetterPairs)
		I(id string) *Future
		N() Setter
		R(body Body, require RequireFunc) error
		U(value any) (any, error)
		W(id string, setters SetterPairs) error
	}

	// Runtime is the per-module Facade. Create one with Graph.Enable.
	Runtime struct {
		graph  *Graph
		module *Module
		entry  *Entry
	}
)

var _ Facade = (*Runtime)(nil)

// Module returns the module the runtime was enabled for.
func (r *Runtime) Module() *Module {
	return r.module
}

// Entry returns the module's entry.
func (r *Runtime) Entry() *Entry {
	return r.entry
}

// Graph returns the graph owning the module.
func (r *Runtime) Graph() *Graph {
	return r.graph
}

// Default registers a "default" export that always returns value.
func (r *Runtime) Default(value any) {
	r.Export(GetterPairs{{Name: DefaultName, Get: Const(value)}})
}

// Export registers getters for exported names.
func (r *Runtime) Export(pairs GetterPairs) {
	r.entry.AddGetters(pairs)
}

// Import loads id on the next tick of the graph's loop and returns a future
// for its namespace. The future always settles: a load error or a panic
// raised while loading rejects it.
func (r *Runtime) Import(id string) *Future {
	future := newFuture()
	err := r.graph.loop.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				future.reject(&ImportPanicError{ID: id, Parent: r.module.ID, Value: p})
			}
		}()
		child, err := r.watch(id, SetterPairs{{
			Name: Wildcard,
			Set: func(v any, _ *Entry) {
				if ns, ok := v.(*Namespace); ok {
					future.resolve(ns)
				}
			},
		}})
		if err != nil {
			future.reject(err)
			return
		}
		future.resolve(child.namespace)
	})
	if err != nil {
		future.reject(fmt.Errorf("schedule import of %q: %w", id, err))
	}
	return future
}

// NSSetter returns a setter that re-exports every name of the entry it is
// notified by.
func (r *Runtime) NSSetter() Setter {
	return func(_ any, child *Entry) {
		r.entry.AddGettersFrom(child)
	}
}

// Run executes a module body with the strategy its type selects.
func (r *Runtime) Run(body Body, require RequireFunc) error {
	switch b := body.(type) {
	case LegacyBody:
		return r.runLegacy(b, require)
	case LiveBody:
		return r.runLive(b)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedBody, body)
	}
}

// Update recomputes the module's namespace, then returns value unchanged so
// the call can wrap the assignment that made the recompute necessary.
func (r *Runtime) Update(value any) (any, error) {
	_, err := r.entry.Update()
	return value, err
}

// Watch loads id, registers setters on it on behalf of this module and
// runs them with the child's current values.
func (r *Runtime) Watch(id string, setters SetterPairs) error {
	_, err := r.watch(id, setters)
	return err
}

func (r *Runtime) watch(id string, setters SetterPairs) (*Entry, error) {
	if err := setters.Validate(); err != nil {
		return nil, fmt.Errorf("watch %q: %w", id, err)
	}

	release, err := r.graph.state.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	r.graph.logger.Debug("watch", "module", id, "parent", r.module.ID, "depth", r.graph.state.Depth())

	child, err := r.graph.importModule(id, r.entry, r.module)
	if err != nil {
		return nil, err
	}
	if setters != nil {
		if _, err := child.AddSetters(setters, r.entry).Update(); err != nil {
			return child, err
		}
	}
	return child, nil
}

// Pass recomputes rt's namespace and returns v unchanged, keeping its type.
func Pass[T any](rt *Runtime, v T) (T, error) {
	_, err := rt.entry.Update()
	return v, err
}

// DefaultExport is Default.
func (r *Runtime) DefaultExport(value any) { r.Default(value) }

// RegisterExports is Export.
func (r *Runtime) RegisterExports(pairs GetterPairs) { r.Export(pairs) }

// ImportModule is Import.
func (r *Runtime) ImportModule(id string) *Future { return r.Import(id) }

// NamespaceSetter is NSSetter.
func (r *Runtime) NamespaceSetter() Setter { return r.NSSetter() }

// RunModuleBody is Run.
func (r *Runtime) RunModuleBody(body Body, require RequireFunc) error { return r.Run(body, require) }

// Recompute is Update.
func (r *Runtime) Recompute(value any) (any, error) { return r.Update(value) }

// WatchModule is Watch.
func (r *Runtime) WatchModule(id string, setters SetterPairs) error { return r.Watch(id, setters) }

// D is Default.
func (r *Runtime) D(value any) { r.Default(value) }

// E is Export.
func (r *Runtime) E(pairs GetterPairs) { r.Export(pairs) }

// I is Import.
func (r *Runtime) I(id string) *Future { return r.Import(id) }

// N is NSSetter.
func (r *Runtime) N() Setter { return r.NSSetter() }

// R is Run.
func (r *Runtime) R(body Body, require RequireFunc) error { return r.Run(body, require) }

// U is Update.
func (r *Runtime) U(value any) (any, error) { return r.Update(value) }

// W is Watch.
func (r *Runtime) W(id string, setters SetterPairs) error { return r.Watch(id, setters) }
